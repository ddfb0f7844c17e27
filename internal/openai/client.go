package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the OpenAI SDK and provides utility helpers.
type Client struct {
	apiKey string
	client *openai.Client
	model  openai.ChatModel
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// Reply is the reminder answer inferred from a free-text message.
type Reply string

const (
	// ReplyUnknown indicates the message could not be mapped to an answer.
	ReplyUnknown Reply = "unknown"
	// ReplyTaken means the dose was taken.
	ReplyTaken Reply = "taken"
	// ReplyMissed means the dose was missed.
	ReplyMissed Reply = "missed"
	// ReplySnooze asks to be reminded again later.
	ReplySnooze Reply = "snooze"
)

const classifyPrompt = "A patient is answering a medicine reminder. Classify the reply. " +
	"Reply with exactly one label: taken, missed, snooze, or unknown."

// New returns an OpenAI client when apiKey is provided. Without a key the
// client is inert and every call returns ErrClientNotInitialised.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		apiKey: apiKey,
		client: &client,
		model:  openai.ChatModelGPT4oMini,
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool { return c != nil && c.client != nil }

// ClassifyReply uses the language model to map a free-text reply to a
// reminder answer.
func (c *Client) ClassifyReply(ctx context.Context, content string) (Reply, error) {
	if strings.TrimSpace(content) == "" {
		return ReplyUnknown, fmt.Errorf("content cannot be empty")
	}
	if !c.Enabled() {
		return ReplyUnknown, ErrClientNotInitialised
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(classifyPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(content),
					},
				},
			},
		},
		Temperature:         openai.Float(0.0),
		MaxCompletionTokens: openai.Int(8),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return ReplyUnknown, err
	}
	if len(resp.Choices) == 0 {
		return ReplyUnknown, fmt.Errorf("no completion received")
	}
	return parseLabel(resp.Choices[0].Message.Content), nil
}

func parseLabel(label string) Reply {
	switch Reply(strings.Trim(strings.ToLower(strings.TrimSpace(label)), ".\"'")) {
	case ReplyTaken:
		return ReplyTaken
	case ReplyMissed:
		return ReplyMissed
	case ReplySnooze:
		return ReplySnooze
	default:
		return ReplyUnknown
	}
}
