package notify

import (
	"context"
	"testing"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReminderTextCarriesShortCode(t *testing.T) {
	t.Parallel()
	text := ReminderText(Delivery{MedicineName: "Metformin", Dosage: "500mg", ReminderKey: "0123456789abcdef"})
	assert.Contains(t, text, "Metformin (500mg)")
	assert.Contains(t, text, `"taken 01234567"`)

	snoozed := ReminderText(Delivery{MedicineName: "Metformin", ReminderKey: "k", Snoozed: true})
	assert.Contains(t, snoozed, "Snoozed reminder")
	assert.Contains(t, snoozed, `"snooze k"`)
}

func TestAlertAndSummaryText(t *testing.T) {
	t.Parallel()
	assert.Contains(t, AlertText(Alert{Kind: AlertLowStock, MedicineName: "A", TargetID: "u1", Remaining: 4}), "4 doses left")
	assert.Contains(t, AlertText(Alert{Kind: AlertMissedAuto, MedicineName: "A", TargetID: "u1", ReminderKey: "abcdefgh1234"}), "verify abcdefgh")

	assert.Contains(t, SummaryText(activity.Summary{Date: "2025-03-01", Compliance: -1}), "no doses recorded")
	assert.Equal(t, "Daily summary 2025-03-01: 3 taken, 1 missed, 75% compliance.",
		SummaryText(activity.Summary{Date: "2025-03-01", Taken: 3, Missed: 1, Total: 4, Compliance: 75}))
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := &Recorder{}

	handle, err := r.SendReminder(ctx, Delivery{ReminderKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "handle-k1", handle)
	require.NoError(t, r.MarkExpired(ctx, "guild", handle))
	assert.Equal(t, []string{"handle-k1"}, r.Expired())

	r.SendErr = assert.AnError
	_, err = r.SendReminder(ctx, Delivery{ReminderKey: "k2"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, r.Reminders(), 1)
}

func TestLogNotifierNeverFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	handle, err := n.SendReminder(ctx, Delivery{TenantID: "guild", ReminderKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "log:k", handle)
	assert.NoError(t, n.MarkExpired(ctx, "guild", handle))
	assert.NoError(t, n.AlertTrackers(ctx, Alert{Kind: AlertLowStock}))
	assert.NoError(t, n.SendSummary(ctx, "guild", []string{"t"}, activity.Summary{}))

	require.Equal(t, 4, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "reminder", first.Message)
	assert.Equal(t, "k", first.ContextMap()["reminder_key"])
}
