package twilio

import (
	"errors"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the client has no sender number.
var ErrNotConfigured = errors.New("twilio sender WhatsApp number is not configured")

// Client wraps Twilio messaging operations required by the notifier.
type Client struct {
	client       *twilio.RestClient
	fromWhatsApp string
	logger       *zap.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, logger *zap.Logger) *Client {
	return &Client{
		client:       twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		fromWhatsApp: fromWhatsApp,
		logger:       logger.Named("twilio"),
	}
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API and returns
// the message SID.
func (c *Client) SendWhatsAppMessage(to, body string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("twilio client not initialised")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return "", ErrNotConfigured
	}

	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return "", fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send message error: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	c.logger.Debug("twilio message sent", zap.String("to", recipient), zap.String("sid", sid))
	return sid, nil
}

// MessageRecipient returns the address a sent message went to.
func (c *Client) MessageRecipient(sid string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("twilio client not initialised")
	}
	msg, err := c.client.Api.FetchMessage(sid, &openapi.FetchMessageParams{})
	if err != nil {
		return "", fmt.Errorf("twilio fetch message %s: %w", sid, err)
	}
	if msg.To == nil {
		return "", fmt.Errorf("twilio message %s has no recipient", sid)
	}
	return *msg.To, nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}

// SanitizeWhatsAppNumber strips the channel prefix from an inbound address.
func SanitizeWhatsAppNumber(from string) string {
	return strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
}
