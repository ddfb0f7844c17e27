// Package notify defines the outbound notification port used by the engine.
package notify

import (
	"context"

	"github.com/pathakanu/medguardian/internal/activity"
)

// Delivery is one reminder to be sent to a target.
type Delivery struct {
	TenantID     string
	TargetID     string
	MedicineID   string
	MedicineName string
	Dosage       string
	ReminderKey  string
	ReminderTime string
	Snoozed      bool
}

// AlertKind says why trackers are being alerted.
type AlertKind string

const (
	// AlertMissedAuto is sent when a reminder escalated without a response.
	AlertMissedAuto AlertKind = "missed_auto"
	// AlertMissedManual is sent when the target reported a missed dose.
	AlertMissedManual AlertKind = "missed_manual"
	// AlertLowStock is sent when inventory enters the low-stock band.
	AlertLowStock AlertKind = "low_stock"
)

// Alert is a fire-and-forget message to every tracker of a tenant.
type Alert struct {
	Kind         AlertKind
	TenantID     string
	Trackers     []string
	MedicineID   string
	MedicineName string
	TargetID     string
	// ReminderKey is set when trackers are asked to verify an instance.
	ReminderKey string
	Remaining   int
}

// Notifier delivers reminders and alerts. Implementations must not retry
// internally; callers decide what a failure means.
type Notifier interface {
	// SendReminder delivers d and returns a handle for MarkExpired.
	SendReminder(ctx context.Context, d Delivery) (string, error)
	MarkExpired(ctx context.Context, tenantID, handle string) error
	AlertTrackers(ctx context.Context, a Alert) error
	SendSummary(ctx context.Context, tenantID string, trackers []string, s activity.Summary) error
}

// ShortCode is the reply code printed in reminder messages.
func ShortCode(reminderKey string) string {
	if len(reminderKey) <= 8 {
		return reminderKey
	}
	return reminderKey[:8]
}
