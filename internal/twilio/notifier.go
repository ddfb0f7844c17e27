package twilio

import (
	"context"
	"errors"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/notify"
	"go.uber.org/zap"
)

type messenger interface {
	SendWhatsAppMessage(to, body string) (string, error)
	MessageRecipient(sid string) (string, error)
}

// Notifier delivers engine notifications over WhatsApp. Target and tracker
// identities are WhatsApp numbers.
type Notifier struct {
	client messenger
	logger *zap.Logger
}

// NewNotifier wraps client.
func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, logger: logger.Named("twilio")}
}

// SendReminder sends the reminder and returns the Twilio message SID.
func (n *Notifier) SendReminder(_ context.Context, d notify.Delivery) (string, error) {
	return n.client.SendWhatsAppMessage(d.TargetID, notify.ReminderText(d))
}

// MarkExpired tells the recipient of the original message that it expired.
// WhatsApp messages cannot be edited, so a follow-up is sent instead.
func (n *Notifier) MarkExpired(_ context.Context, _ string, handle string) error {
	to, err := n.client.MessageRecipient(handle)
	if err != nil {
		return err
	}
	_, err = n.client.SendWhatsAppMessage(to, notify.ExpiredText())
	return err
}

// AlertTrackers messages every tracker. All trackers are attempted; the
// failures are joined.
func (n *Notifier) AlertTrackers(_ context.Context, a notify.Alert) error {
	return n.broadcast(a.Trackers, notify.AlertText(a))
}

// SendSummary messages the daily summary to every tracker.
func (n *Notifier) SendSummary(_ context.Context, _ string, trackers []string, s activity.Summary) error {
	return n.broadcast(trackers, notify.SummaryText(s))
}

func (n *Notifier) broadcast(to []string, body string) error {
	if len(to) == 0 {
		n.logger.Warn("twilio: no trackers to notify")
		return nil
	}
	var errList []error
	for _, recipient := range to {
		if _, err := n.client.SendWhatsAppMessage(recipient, body); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
