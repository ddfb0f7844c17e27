package notify

import (
	"fmt"
	"strings"

	"github.com/pathakanu/medguardian/internal/activity"
)

// ReminderText renders the message sent to a target.
func ReminderText(d Delivery) string {
	var b strings.Builder
	if d.Snoozed {
		b.WriteString("Snoozed reminder: ")
	} else {
		b.WriteString("Medicine reminder: ")
	}
	fmt.Fprintf(&b, "time to take %s", d.MedicineName)
	if d.Dosage != "" {
		fmt.Fprintf(&b, " (%s)", d.Dosage)
	}
	fmt.Fprintf(&b, ".\nReply \"taken %[1]s\", \"missed %[1]s\" or \"snooze %[1]s\".", ShortCode(d.ReminderKey))
	return b.String()
}

// ExpiredText replaces a reminder nobody answered.
func ExpiredText() string {
	return "This reminder has expired. Your caretakers have been notified."
}

// AlertText renders a tracker alert.
func AlertText(a Alert) string {
	switch a.Kind {
	case AlertMissedAuto:
		return fmt.Sprintf("%s did not confirm %s within the reminder window.\nReply \"verify %s taken|late|missed\".",
			a.TargetID, a.MedicineName, ShortCode(a.ReminderKey))
	case AlertMissedManual:
		return fmt.Sprintf("%s reported missing %s.\nReply \"verify %s taken|late|missed\".",
			a.TargetID, a.MedicineName, ShortCode(a.ReminderKey))
	case AlertLowStock:
		return fmt.Sprintf("Low stock: %s for %s has %d doses left.", a.MedicineName, a.TargetID, a.Remaining)
	default:
		return fmt.Sprintf("Alert %s for %s (%s).", a.Kind, a.MedicineName, a.TargetID)
	}
}

// SummaryText renders the daily summary.
func SummaryText(s activity.Summary) string {
	if !s.HasData() {
		return fmt.Sprintf("Daily summary %s: no doses recorded.", s.Date)
	}
	return fmt.Sprintf("Daily summary %s: %d taken, %d missed, %d%% compliance.", s.Date, s.Taken, s.Missed, s.Compliance)
}
