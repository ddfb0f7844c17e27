package notify

import (
	"context"
	"sync"

	"github.com/pathakanu/medguardian/internal/activity"
)

// Recorder is an in-memory Notifier for tests. Setting an Err field makes the
// matching call fail after it is recorded.
type Recorder struct {
	mu        sync.Mutex
	reminders []Delivery
	expired   []string
	alerts    []Alert
	summaries []activity.Summary

	SendErr    error
	AlertErr   error
	SummaryErr error
}

// SendReminder records d and returns a handle derived from its key.
func (r *Recorder) SendReminder(_ context.Context, d Delivery) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return "", r.SendErr
	}
	r.reminders = append(r.reminders, d)
	return "handle-" + d.ReminderKey, nil
}

// MarkExpired records handle.
func (r *Recorder) MarkExpired(_ context.Context, _ string, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, handle)
	return nil
}

// AlertTrackers records a.
func (r *Recorder) AlertTrackers(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.AlertErr
}

// SendSummary records s.
func (r *Recorder) SendSummary(_ context.Context, _ string, _ []string, s activity.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return r.SummaryErr
}

// Reminders returns the delivered reminders in order.
func (r *Recorder) Reminders() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.reminders...)
}

// Expired returns the expired handles in order.
func (r *Recorder) Expired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.expired...)
}

// Alerts returns the tracker alerts in order.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// Summaries returns the summaries in order.
func (r *Recorder) Summaries() []activity.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activity.Summary(nil), r.summaries...)
}
