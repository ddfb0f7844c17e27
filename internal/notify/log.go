package notify

import (
	"context"
	"strings"

	"github.com/pathakanu/medguardian/internal/activity"
	"go.uber.org/zap"
)

// LogNotifier writes every notification to the logger instead of a chat
// platform. It is used when no messaging credentials are configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) SendReminder(_ context.Context, d Delivery) (string, error) {
	n.logger.Info("reminder",
		zap.String("tenant", d.TenantID),
		zap.String("target", d.TargetID),
		zap.String("reminder_key", d.ReminderKey),
		zap.String("text", ReminderText(d)))
	return "log:" + d.ReminderKey, nil
}

func (n *LogNotifier) MarkExpired(_ context.Context, tenantID, handle string) error {
	n.logger.Info("reminder expired", zap.String("tenant", tenantID), zap.String("handle", handle))
	return nil
}

func (n *LogNotifier) AlertTrackers(_ context.Context, a Alert) error {
	n.logger.Info("tracker alert",
		zap.String("tenant", a.TenantID),
		zap.String("kind", string(a.Kind)),
		zap.String("trackers", strings.Join(a.Trackers, ",")),
		zap.String("text", AlertText(a)))
	return nil
}

func (n *LogNotifier) SendSummary(_ context.Context, tenantID string, trackers []string, s activity.Summary) error {
	n.logger.Info("daily summary",
		zap.String("tenant", tenantID),
		zap.Strings("trackers", trackers),
		zap.String("text", SummaryText(s)))
	return nil
}
