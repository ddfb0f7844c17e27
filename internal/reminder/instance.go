// Package reminder runs the reminder lifecycle: delivery of due slots,
// target responses, escalation and tracker verification.
package reminder

import (
	"strings"
	"time"

	"github.com/pathakanu/medguardian/internal/errs"
)

// State is the lifecycle state of an Instance.
type State string

const (
	Pending   State = "pending"
	Delivered State = "delivered"
	Responded State = "responded"
	Escalated State = "escalated"
	Verified  State = "verified"
)

// Action is a target's answer to a delivered reminder.
type Action string

const (
	ActionTaken  Action = "taken"
	ActionMissed Action = "missed"
	ActionSnooze Action = "snooze"
)

// ParseAction accepts taken, missed and snooze in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionTaken, ActionMissed, ActionSnooze:
		return a, nil
	}
	return "", errs.Invalid("action", "must be taken, missed or snooze, got %q", s)
}

// Outcome is a tracker's verification of an escalated reminder.
type Outcome string

const (
	OutcomeTaken  Outcome = "taken"
	OutcomeLate   Outcome = "late"
	OutcomeMissed Outcome = "missed"
)

// ParseOutcome accepts taken, late and missed in any case.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case OutcomeTaken, OutcomeLate, OutcomeMissed:
		return o, nil
	}
	return "", errs.Invalid("outcome", "must be taken, late or missed, got %q", s)
}

// Instance is one concrete reminder occurrence.
type Instance struct {
	Key          string    `json:"reminder_key"`
	TenantID     string    `json:"tenant_id"`
	SlotKey      string    `json:"slot_key,omitempty"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	TargetID     string    `json:"target_id"`
	State        State     `json:"state"`
	Response     Action    `json:"response,omitempty"`
	Outcome      Outcome   `json:"outcome,omitempty"`
	Snoozed      bool      `json:"snoozed,omitempty"`
	Handle       string    `json:"delivery_handle,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
