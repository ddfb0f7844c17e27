package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/medguardian/internal/errs"
	myopenai "github.com/pathakanu/medguardian/internal/openai"
	"github.com/pathakanu/medguardian/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	responses     []reminder.Response
	verifications []reminder.Verification
	resolvedCode  string
	respondErr    error
	resolveErr    error
}

func (f *fakeEngine) ResolveResponse(_ context.Context, _, _, code string) (string, error) {
	f.resolvedCode = code
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "key-" + code, nil
}

func (f *fakeEngine) Respond(_ context.Context, r reminder.Response) (reminder.Instance, error) {
	f.responses = append(f.responses, r)
	return reminder.Instance{Key: r.ReminderKey, MedicineName: "Metformin"}, f.respondErr
}

func (f *fakeEngine) ResolveVerification(_ context.Context, _, code string) (string, error) {
	f.resolvedCode = code
	return "key-" + code, nil
}

func (f *fakeEngine) Verify(_ context.Context, v reminder.Verification) (reminder.Instance, error) {
	f.verifications = append(f.verifications, v)
	return reminder.Instance{Key: v.ReminderKey, MedicineName: "Metformin", TargetID: "+911"}, nil
}

type fakeClassifier struct{ reply myopenai.Reply }

func (f fakeClassifier) ClassifyReply(context.Context, string) (myopenai.Reply, error) {
	return f.reply, nil
}

func post(t *testing.T, b *Bot, from, body string) string {
	t.Helper()
	router := chi.NewRouter()
	router.Post("/twilio/webhook/{tenant}", b.Handler())

	form := url.Values{"From": {from}, "Body": {body}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook/guild", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := map[string]command{
		"taken":                  {action: reminder.ActionTaken},
		" Missed 1A2B3C4D ":      {action: reminder.ActionMissed, code: "1a2b3c4d"},
		"snooze abc":             {action: reminder.ActionSnooze, code: "abc"},
		"verify 1a2b3c4d late":   {verify: true, code: "1a2b3c4d", outcome: reminder.OutcomeLate},
		"VERIFY 1a2b3c4d Missed": {verify: true, code: "1a2b3c4d", outcome: reminder.OutcomeMissed},
	}
	for input, want := range cases {
		got, ok := parseCommand(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "taken it", "verify late", "remind me later"} {
		_, ok := parseCommand(input)
		assert.False(t, ok, input)
	}
}

func TestWebhookResponds(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	b := New(engine, nil, zap.NewNop())

	out := post(t, b, "whatsapp:+911", "taken 1a2b3c4d")
	assert.Contains(t, out, "Metformin marked as taken")
	require.Len(t, engine.responses, 1)
	assert.Equal(t, reminder.Response{TenantID: "guild", ReminderKey: "key-1a2b3c4d", Actor: "+911", Action: reminder.ActionTaken}, engine.responses[0])

	post(t, b, "whatsapp:+911", "snooze")
	assert.Empty(t, engine.resolvedCode, "no code resolves the latest reminder")
	assert.Equal(t, reminder.ActionSnooze, engine.responses[1].Action)
}

func TestWebhookVerifies(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	b := New(engine, nil, zap.NewNop())

	out := post(t, b, "whatsapp:+919", "verify 1a2b3c4d late")
	assert.Contains(t, out, "Recorded Metformin as late for +911")
	require.Len(t, engine.verifications, 1)
	assert.Equal(t, "+919", engine.verifications[0].Actor)
	assert.Equal(t, reminder.OutcomeLate, engine.verifications[0].Outcome)
}

func TestWebhookErrors(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{respondErr: errs.ErrStaleTransition}
	b := New(engine, nil, zap.NewNop())
	assert.Contains(t, post(t, b, "whatsapp:+911", "taken"), "already handled")

	engine = &fakeEngine{resolveErr: errs.ErrNotFound}
	b = New(engine, nil, zap.NewNop())
	assert.Contains(t, post(t, b, "whatsapp:+911", "taken"), "couldn&#39;t find an open reminder")

	assert.Contains(t, post(t, b, "whatsapp:+911", "what is this"), "Reply to a reminder")
	assert.Contains(t, post(t, b, "", "taken"), "I need a message")
}

func TestWebhookFallsBackToClassifier(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	b := New(engine, fakeClassifier{reply: myopenai.ReplyTaken}, zap.NewNop())

	post(t, b, "whatsapp:+911", "yes I had my pill")
	require.Len(t, engine.responses, 1)
	assert.Equal(t, reminder.ActionTaken, engine.responses[0].Action)

	b = New(engine, fakeClassifier{reply: myopenai.ReplyUnknown}, zap.NewNop())
	assert.Contains(t, post(t, b, "whatsapp:+911", "hello"), "Reply to a reminder")
	assert.Len(t, engine.responses, 1)
}

func TestDecodeTwilioForm(t *testing.T) {
	t.Parallel()
	got := DecodeTwilioForm(url.Values{"From": {"whatsapp:+1", "ignored"}, "Empty": {}})
	assert.Equal(t, map[string]string{"From": "whatsapp:+1"}, got)
}
