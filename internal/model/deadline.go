package model

import "time"

// Deadline kinds.
const (
	DeadlineEscalation   = "escalation"
	DeadlineSnooze       = "snooze"
	DeadlineVerification = "verification"
)

// Deadline states. Rows move armed -> canceled or armed -> fired, and fired
// escalation/verification rows move to settled once a tracker verifies them.
const (
	DeadlineArmed    = "armed"
	DeadlineCanceled = "canceled"
	DeadlineFired    = "fired"
	DeadlineSettled  = "settled"
)

// Deadline is a persisted deferred task keyed by reminder key. It replaces
// in-process timers so that pending escalations survive restarts.
type Deadline struct {
	ReminderKey    string    `gorm:"primaryKey;size:64"`
	TenantID       string    `gorm:"index:idx_deadlines_due,priority:1;size:128;not null"`
	Kind           string    `gorm:"size:16;not null"`
	State          string    `gorm:"index:idx_deadlines_due,priority:2;size:16;not null"`
	DueAt          time.Time `gorm:"index:idx_deadlines_due,priority:3;not null"`
	MedicineID     string    `gorm:"size:128;not null"`
	TargetID       string    `gorm:"size:128;not null"`
	SlotKey        string    `gorm:"size:256"`
	DeliveryHandle string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}
