package bot

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/medguardian/internal/errs"
	myopenai "github.com/pathakanu/medguardian/internal/openai"
	"github.com/pathakanu/medguardian/internal/reminder"
	"github.com/pathakanu/medguardian/internal/twilio"
	"go.uber.org/zap"
)

// Engine is the part of the reminder manager the bot drives.
type Engine interface {
	ResolveResponse(ctx context.Context, tenantID, targetID, code string) (string, error)
	Respond(ctx context.Context, r reminder.Response) (reminder.Instance, error)
	ResolveVerification(ctx context.Context, tenantID, code string) (string, error)
	Verify(ctx context.Context, v reminder.Verification) (reminder.Instance, error)
}

// Classifier maps free text to a reminder answer.
type Classifier interface {
	ClassifyReply(ctx context.Context, content string) (myopenai.Reply, error)
}

// Bot turns inbound WhatsApp replies into reminder responses and tracker
// verifications.
type Bot struct {
	engine     Engine
	classifier Classifier
	logger     *zap.Logger
}

// New creates a Bot. classifier may be nil.
func New(engine Engine, classifier Classifier, logger *zap.Logger) *Bot {
	return &Bot{engine: engine, classifier: classifier, logger: logger.Named("bot")}
}

// Handler returns the HTTP handler for incoming Twilio messages. The tenant
// comes from the {tenant} route parameter.
func (b *Bot) Handler() http.HandlerFunc {
	return b.handleIncomingMessage
}

type command struct {
	verify  bool
	action  reminder.Action
	outcome reminder.Outcome
	code    string
}

var (
	responseRegex = regexp.MustCompile(`(?i)^\s*(taken|missed|snooze)(?:\s+([0-9a-f-]{1,36}))?\s*$`)
	verifyRegex   = regexp.MustCompile(`(?i)^\s*verify\s+([0-9a-f-]{1,36})\s+(taken|late|missed)\s*$`)
)

func parseCommand(body string) (command, bool) {
	if m := verifyRegex.FindStringSubmatch(body); m != nil {
		return command{verify: true, code: strings.ToLower(m[1]), outcome: reminder.Outcome(strings.ToLower(m[2]))}, true
	}
	if m := responseRegex.FindStringSubmatch(body); m != nil {
		return command{action: reminder.Action(strings.ToLower(m[1])), code: strings.ToLower(m[2])}, true
	}
	return command{}, false
}

// handleIncomingMessage processes Twilio webhook POST requests.
func (b *Bot) handleIncomingMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		b.logger.Warn("webhook: parse error", zap.Error(err))
		b.writeTwilioResponse(w, "Sorry, I couldn't understand that request.")
		return
	}

	form := DecodeTwilioForm(r.PostForm)
	tenantID := chi.URLParam(r, "tenant")
	from := form["From"]
	body := strings.TrimSpace(form["Body"])
	if tenantID == "" || from == "" || body == "" {
		b.writeTwilioResponse(w, "I need a message to work with. Please try again.")
		return
	}
	userID := twilio.SanitizeWhatsAppNumber(from)

	cmd, ok := parseCommand(body)
	if !ok {
		cmd, ok = b.classify(r.Context(), body)
	}
	if !ok {
		b.writeTwilioResponse(w, helpResponse())
		return
	}

	if cmd.verify {
		b.writeTwilioResponse(w, b.verify(r.Context(), tenantID, userID, cmd))
		return
	}
	b.writeTwilioResponse(w, b.respond(r.Context(), tenantID, userID, cmd))
}

func (b *Bot) classify(ctx context.Context, body string) (command, bool) {
	if b.classifier == nil {
		return command{}, false
	}
	reply, err := b.classifier.ClassifyReply(ctx, body)
	if err != nil {
		if !errors.Is(err, myopenai.ErrClientNotInitialised) {
			b.logger.Warn("reply classification error", zap.Error(err))
		}
		return command{}, false
	}
	switch reply {
	case myopenai.ReplyTaken:
		return command{action: reminder.ActionTaken}, true
	case myopenai.ReplyMissed:
		return command{action: reminder.ActionMissed}, true
	case myopenai.ReplySnooze:
		return command{action: reminder.ActionSnooze}, true
	default:
		return command{}, false
	}
}

func (b *Bot) respond(ctx context.Context, tenantID, userID string, cmd command) string {
	key, err := b.engine.ResolveResponse(ctx, tenantID, userID, cmd.code)
	if err != nil {
		return b.errorText(err, tenantID, userID)
	}
	inst, err := b.engine.Respond(ctx, reminder.Response{TenantID: tenantID, ReminderKey: key, Actor: userID, Action: cmd.action})
	if err != nil {
		return b.errorText(err, tenantID, userID)
	}

	switch cmd.action {
	case reminder.ActionTaken:
		return fmt.Sprintf("Thanks! %s marked as taken.", fallback(inst.MedicineName, "Your dose"))
	case reminder.ActionMissed:
		return "Noted. Your caretakers have been informed."
	default:
		return "OK, I'll remind you again shortly."
	}
}

func (b *Bot) verify(ctx context.Context, tenantID, userID string, cmd command) string {
	key, err := b.engine.ResolveVerification(ctx, tenantID, cmd.code)
	if err != nil {
		return b.errorText(err, tenantID, userID)
	}
	inst, err := b.engine.Verify(ctx, reminder.Verification{TenantID: tenantID, ReminderKey: key, Actor: userID, Outcome: cmd.outcome})
	if err != nil {
		return b.errorText(err, tenantID, userID)
	}
	return fmt.Sprintf("Recorded %s as %s for %s.", fallback(inst.MedicineName, "the dose"), cmd.outcome, inst.TargetID)
}

func (b *Bot) errorText(err error, tenantID, userID string) string {
	switch {
	case errors.Is(err, errs.ErrStaleTransition):
		return "That reminder was already handled."
	case errors.Is(err, errs.ErrNotFound):
		return "I couldn't find an open reminder for you."
	case errors.Is(err, errs.ErrForbidden):
		return "You are not allowed to answer that reminder."
	case errs.IsValidation(err):
		return helpResponse()
	default:
		b.logger.Error("webhook: engine error", zap.String("tenant", tenantID), zap.String("from", userID), zap.Error(err))
		return "Hmm, something went wrong. Please try again later."
	}
}

func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Warn("twilio response encode", zap.Error(err))
	}
}

func fallback(primary, secondary string) string {
	if strings.TrimSpace(primary) == "" {
		return secondary
	}
	return primary
}

func helpResponse() string {
	return "Reply to a reminder with:\n- \"taken\" once you took it\n- \"missed\" if you skipped it\n- \"snooze\" to be reminded again\nAdd the code from the reminder to answer an older one, e.g. \"taken 1a2b3c4d\"."
}

// DecodeTwilioForm extracts the POST form data into a map for convenience.
func DecodeTwilioForm(values url.Values) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		if len(value) > 0 {
			result[key] = value[0]
		}
	}
	return result
}
