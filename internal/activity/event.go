// Package activity is the append-only audit trail of medicine and reminder
// events. Entries are stored newest-first in the tenant's logs document.
package activity

import "time"

// Kind tags a log entry.
type Kind string

const (
	KindReminderSent         Kind = "reminder_sent"
	KindTaken                Kind = "medicine_taken"
	KindMissedManual         Kind = "medicine_missed_manual"
	KindSnoozed              Kind = "medicine_snoozed"
	KindMissedAuto           Kind = "medicine_missed_auto"
	KindTakenVerified        Kind = "medicine_taken_verified"
	KindTakenLate            Kind = "medicine_taken_late"
	KindMissedConfirmed      Kind = "medicine_missed_confirmed"
	KindTakenManual          Kind = "medicine_taken_manual"
	KindTakenLateManual      Kind = "medicine_taken_late_manual"
	KindMissedCorrected      Kind = "medicine_missed_corrected"
	KindInventoryLow         Kind = "inventory_low"
	KindMedicineAdded        Kind = "medicine_added"
	KindMedicineUpdated      Kind = "medicine_updated"
	KindMedicineDeleted      Kind = "medicine_deleted"
	KindSettingsUpdated      Kind = "settings_updated"
	KindSchedulesRegenerated Kind = "schedules_regenerated"

	// KindMissed is never written by the engine. It is kept because the daily
	// summary counts it and older logs may carry it.
	KindMissed Kind = "medicine_missed"
)

// Entry is one immutable log record.
type Entry struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	MedicineID   string         `json:"medicine_id,omitempty"`
	MedicineName string         `json:"medicine_name,omitempty"`
	TargetID     string         `json:"target_id,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	ReminderKey  string         `json:"reminder_key,omitempty"`
	Message      string         `json:"message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Event is a loggable occurrence. Only the variants below implement it.
type Event interface {
	Kind() Kind
	entry() Entry
}

// Dose identifies the medicine, target and reminder an intake event refers to.
type Dose struct {
	MedicineID   string
	MedicineName string
	TargetID     string
	ReminderKey  string
	Actor        string
}

func (d Dose) base(kind Kind, msg string) Entry {
	return Entry{
		Kind:         kind,
		MedicineID:   d.MedicineID,
		MedicineName: d.MedicineName,
		TargetID:     d.TargetID,
		ReminderKey:  d.ReminderKey,
		Actor:        d.Actor,
		Message:      msg,
	}
}

// ReminderSent records a delivered reminder.
type ReminderSent struct {
	Dose
	SlotKey      string
	ReminderTime string
	Snoozed      bool
}

func (ReminderSent) Kind() Kind { return KindReminderSent }
func (e ReminderSent) entry() Entry {
	en := e.base(e.Kind(), "Reminder sent for "+e.MedicineName)
	en.Metadata = map[string]any{"slot_key": e.SlotKey, "reminder_time": e.ReminderTime, "snoozed": e.Snoozed}
	return en
}

// Taken is the target confirming a dose.
type Taken struct{ Dose }

func (Taken) Kind() Kind     { return KindTaken }
func (e Taken) entry() Entry { return e.base(e.Kind(), e.MedicineName+" taken by target") }

// MissedByTarget is the target reporting a missed dose.
type MissedByTarget struct{ Dose }

func (MissedByTarget) Kind() Kind { return KindMissedManual }
func (e MissedByTarget) entry() Entry {
	return e.base(e.Kind(), e.MedicineName+" marked as missed by target")
}

// Snoozed is the target postponing a reminder.
type Snoozed struct {
	Dose
	Minutes     int
	FollowUpKey string
}

func (Snoozed) Kind() Kind { return KindSnoozed }
func (e Snoozed) entry() Entry {
	en := e.base(e.Kind(), e.MedicineName+" snoozed")
	en.Metadata = map[string]any{"snooze_minutes": e.Minutes, "follow_up_key": e.FollowUpKey}
	return en
}

// MissedAuto is an unanswered reminder escalated after the timeout.
type MissedAuto struct{ Dose }

func (MissedAuto) Kind() Kind { return KindMissedAuto }
func (e MissedAuto) entry() Entry {
	en := e.base(e.Kind(), "Automatic missed dose detection for "+e.MedicineName)
	en.Metadata = map[string]any{"detection_method": "automatic_timeout"}
	return en
}

// TakenVerified is a tracker confirming an escalated dose was taken.
type TakenVerified struct{ Dose }

func (TakenVerified) Kind() Kind { return KindTakenVerified }
func (e TakenVerified) entry() Entry {
	return e.base(e.Kind(), "Tracker verified taken status for "+e.MedicineName)
}

// TakenLate is a tracker confirming an escalated dose was taken late.
type TakenLate struct{ Dose }

func (TakenLate) Kind() Kind { return KindTakenLate }
func (e TakenLate) entry() Entry {
	return e.base(e.Kind(), "Tracker verified late status for "+e.MedicineName)
}

// MissedConfirmed is a tracker confirming an escalated dose was missed.
type MissedConfirmed struct{ Dose }

func (MissedConfirmed) Kind() Kind { return KindMissedConfirmed }
func (e MissedConfirmed) entry() Entry {
	return e.base(e.Kind(), "Tracker verified missed status for "+e.MedicineName)
}

// IntakeStatus is the status a tracker records out of band.
type IntakeStatus string

const (
	IntakeTaken      IntakeStatus = "taken"
	IntakeTakenLate  IntakeStatus = "taken_late"
	IntakeMissed     IntakeStatus = "missed"
	IntakeUndoMissed IntakeStatus = "undo_missed"
)

// ManualIntake is a tracker override not tied to any reminder.
type ManualIntake struct {
	Dose
	Status IntakeStatus
	Notes  string
}

func (e ManualIntake) Kind() Kind {
	switch e.Status {
	case IntakeTakenLate:
		return KindTakenLateManual
	case IntakeMissed:
		return KindMissedManual
	case IntakeUndoMissed:
		return KindMissedCorrected
	default:
		return KindTakenManual
	}
}

func (e ManualIntake) entry() Entry {
	en := e.base(e.Kind(), "Manual intake update: "+string(e.Status)+" for "+e.MedicineName)
	en.Metadata = map[string]any{"status": string(e.Status), "manual_entry": true}
	if e.Notes != "" {
		en.Metadata["notes"] = e.Notes
	}
	return en
}

// InventoryLow is emitted when a decrement lands in the low-stock band.
type InventoryLow struct {
	Dose
	Remaining int
}

func (InventoryLow) Kind() Kind { return KindInventoryLow }
func (e InventoryLow) entry() Entry {
	en := e.base(e.Kind(), "Low inventory alert for "+e.MedicineName)
	en.Metadata = map[string]any{"remaining_count": e.Remaining}
	return en
}

// Change is an old/new pair for one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// MedicineAdded records a new medicine.
type MedicineAdded struct{ Dose }

func (MedicineAdded) Kind() Kind     { return KindMedicineAdded }
func (e MedicineAdded) entry() Entry { return e.base(e.Kind(), "Medicine "+e.MedicineName+" added") }

// MedicineUpdated records changed medicine fields.
type MedicineUpdated struct {
	Dose
	Changes map[string]Change
}

func (MedicineUpdated) Kind() Kind { return KindMedicineUpdated }
func (e MedicineUpdated) entry() Entry {
	en := e.base(e.Kind(), "Medicine "+e.MedicineName+" updated")
	if len(e.Changes) > 0 {
		en.Metadata = map[string]any{"changes": e.Changes}
	}
	return en
}

// MedicineDeleted records a deletion.
type MedicineDeleted struct{ Dose }

func (MedicineDeleted) Kind() Kind { return KindMedicineDeleted }
func (e MedicineDeleted) entry() Entry {
	return e.base(e.Kind(), "Medicine "+e.MedicineName+" deleted")
}

// SettingsUpdated records a settings write.
type SettingsUpdated struct {
	Actor   string
	Changes map[string]Change
}

func (SettingsUpdated) Kind() Kind { return KindSettingsUpdated }
func (e SettingsUpdated) entry() Entry {
	en := Entry{Kind: e.Kind(), Actor: e.Actor, Message: "Tenant settings updated"}
	if len(e.Changes) > 0 {
		en.Metadata = map[string]any{"changes": e.Changes}
	}
	return en
}

// SchedulesRegenerated records a full slot recompute.
type SchedulesRegenerated struct {
	Actor   string
	Slots   int
	Skipped int
}

func (SchedulesRegenerated) Kind() Kind { return KindSchedulesRegenerated }
func (e SchedulesRegenerated) entry() Entry {
	return Entry{
		Kind:     e.Kind(),
		Actor:    e.Actor,
		Message:  "Schedules regenerated",
		Metadata: map[string]any{"slots": e.Slots, "skipped": e.Skipped},
	}
}
