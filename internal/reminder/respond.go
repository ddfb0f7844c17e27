package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/model"
	"github.com/pathakanu/medguardian/internal/notify"
	"go.uber.org/zap"
)

// Response is a target's answer to a reminder.
type Response struct {
	TenantID    string
	ReminderKey string
	Actor       string
	Action      Action
	// MedicineID identifies the dose when ReminderKey is unknown to the
	// engine, for example after its deadline row was purged.
	MedicineID string
}

// Respond applies a target response. Only the first response to a DELIVERED
// instance takes effect; later ones return errs.ErrStaleTransition. A
// response from anyone but the bound target returns errs.ErrForbidden.
func (m *Manager) Respond(ctx context.Context, r Response) (Instance, error) {
	if r.ReminderKey == "" {
		return Instance{}, errs.Invalid("reminder_key", "is required")
	}
	if _, err := ParseAction(string(r.Action)); err != nil {
		return Instance{}, err
	}

	row, err := m.deadlines.Get(ctx, r.ReminderKey)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		if inst, ok := m.cached(r.ReminderKey); ok && inst.TenantID == r.TenantID {
			return inst, m.stale(inst, "respond")
		}
		return m.respondUntracked(ctx, r)
	case err != nil:
		return Instance{}, err
	}
	if row.TenantID != r.TenantID {
		return Instance{}, fmt.Errorf("reminder %s: %w", r.ReminderKey, errs.ErrNotFound)
	}
	if row.TargetID != r.Actor {
		return Instance{}, fmt.Errorf("only the target may respond to reminder %s: %w", r.ReminderKey, errs.ErrForbidden)
	}
	if row.Kind != model.DeadlineEscalation || row.State != model.DeadlineArmed {
		inst := m.instanceFor(ctx, row, stateOf(row))
		inst.State = stateOf(row)
		return inst, m.stale(inst, "respond")
	}

	// The escalation deadline must be canceled before the response counts, so
	// a deadline claimed concurrently makes this response stale instead.
	canceled, err := m.deadlines.Cancel(ctx, r.ReminderKey)
	if err != nil {
		return Instance{}, err
	}
	inst := m.instanceFor(ctx, row, Delivered)
	if !canceled {
		if fresh, err := m.deadlines.Get(ctx, r.ReminderKey); err == nil {
			inst.State = stateOf(fresh)
		}
		return inst, m.stale(inst, "respond")
	}

	answered := inst
	answered.State = Responded
	answered.Response = r.Action
	answered.UpdatedAt = m.clock.Now()

	// If no effect was stored the row goes back to armed, so the caller's
	// retry is applied instead of being rejected as stale.
	committed, err := m.applyResponse(ctx, answered, r, true)
	if err != nil && !committed {
		m.revert(ctx, inst, "respond", m.deadlines.Rearm)
		return inst, err
	}

	m.put(answered)
	m.metrics.Responses.WithLabelValues(string(r.Action)).Inc()
	m.logger.Info("reminder: responded",
		zap.String("tenant", answered.TenantID),
		zap.String("reminder_key", answered.Key),
		zap.String("action", string(r.Action)))
	return answered, err
}

// revert undoes the deadline transition of an operation whose effects all
// failed. A failed revert leaves the row terminal and is logged.
func (m *Manager) revert(ctx context.Context, inst Instance, op string, undo func(context.Context, string) (bool, error)) {
	ok, err := undo(ctx, inst.Key)
	if err != nil || !ok {
		m.logger.Error("reminder: revert deadline after failed "+op,
			zap.String("tenant", inst.TenantID),
			zap.String("reminder_key", inst.Key),
			zap.Bool("reverted", ok),
			zap.Error(err))
	}
}

// respondUntracked handles a key with no instance and no deadline row. Only
// the direct inventory, log and alert effects apply.
func (m *Manager) respondUntracked(ctx context.Context, r Response) (Instance, error) {
	if r.MedicineID == "" {
		return Instance{}, fmt.Errorf("reminder %s: %w", r.ReminderKey, errs.ErrNotFound)
	}
	med, err := m.medicines.Get(ctx, r.TenantID, r.MedicineID)
	if err != nil {
		return Instance{}, err
	}
	if med.TargetID != r.Actor {
		return Instance{}, fmt.Errorf("only the target may respond for medicine %s: %w", med.ID, errs.ErrForbidden)
	}

	now := m.clock.Now()
	inst := Instance{
		Key:          r.ReminderKey,
		TenantID:     r.TenantID,
		MedicineID:   med.ID,
		MedicineName: med.Name,
		TargetID:     med.TargetID,
		State:        Responded,
		Response:     r.Action,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.metrics.Responses.WithLabelValues(string(r.Action)).Inc()
	m.logger.Info("reminder: response for unknown key",
		zap.String("tenant", inst.TenantID),
		zap.String("reminder_key", inst.Key),
		zap.String("action", string(r.Action)))
	_, err = m.applyResponse(ctx, inst, r, false)
	return inst, err
}

// applyResponse runs the effects of a response. committed reports whether
// any effect was stored before a failure.
func (m *Manager) applyResponse(ctx context.Context, inst Instance, r Response, tracked bool) (committed bool, err error) {
	switch r.Action {
	case ActionTaken:
		if _, err := m.ledger.Decrement(ctx, inst.TenantID, inst.MedicineID, 1, r.Actor); err != nil {
			return false, err
		}
		_, err := m.log.Record(ctx, inst.TenantID, activity.Taken{Dose: m.dose(inst, r.Actor)})
		return true, err

	case ActionMissed:
		if _, err := m.log.Record(ctx, inst.TenantID, activity.MissedByTarget{Dose: m.dose(inst, r.Actor)}); err != nil {
			return false, err
		}
		return true, m.openVerification(ctx, inst)

	case ActionSnooze:
		ev := activity.Snoozed{Dose: m.dose(inst, r.Actor), Minutes: int(m.cfg.Snooze.Minutes())}
		if tracked {
			follow, err := m.scheduleSnooze(ctx, inst)
			if err != nil {
				return false, err
			}
			ev.FollowUpKey = follow.Key
		}
		_, err := m.log.Record(ctx, inst.TenantID, ev)
		return tracked, err
	}
	return false, nil
}

// openVerification creates the ESCALATED instance trackers verify after a
// target reported a missed dose, and alerts them.
func (m *Manager) openVerification(ctx context.Context, from Instance) error {
	now := m.clock.Now()
	inst := Instance{
		Key:          uuid.NewString(),
		TenantID:     from.TenantID,
		SlotKey:      from.SlotKey,
		MedicineID:   from.MedicineID,
		MedicineName: from.MedicineName,
		TargetID:     from.TargetID,
		State:        Escalated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := m.deadlines.Put(ctx, model.Deadline{
		ReminderKey: inst.Key,
		TenantID:    inst.TenantID,
		Kind:        model.DeadlineVerification,
		State:       model.DeadlineFired,
		DueAt:       now.UTC(),
		MedicineID:  inst.MedicineID,
		TargetID:    inst.TargetID,
		SlotKey:     inst.SlotKey,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return err
	}
	m.put(inst)

	m.alert(ctx, inst, notify.AlertMissedManual, []zap.Field{
		zap.String("tenant", inst.TenantID),
		zap.String("medicine", inst.MedicineID),
		zap.String("target", inst.TargetID),
		zap.String("reminder_key", inst.Key),
	})
	return nil
}

// scheduleSnooze creates a PENDING follow-up with a fresh key, delivered
// once its snooze deadline fires.
func (m *Manager) scheduleSnooze(ctx context.Context, from Instance) (Instance, error) {
	now := m.clock.Now()
	follow := Instance{
		Key:          uuid.NewString(),
		TenantID:     from.TenantID,
		SlotKey:      from.SlotKey,
		MedicineID:   from.MedicineID,
		MedicineName: from.MedicineName,
		TargetID:     from.TargetID,
		State:        Pending,
		Snoozed:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := m.deadlines.Put(ctx, model.Deadline{
		ReminderKey: follow.Key,
		TenantID:    follow.TenantID,
		Kind:        model.DeadlineSnooze,
		State:       model.DeadlineArmed,
		DueAt:       now.Add(m.cfg.Snooze).UTC(),
		MedicineID:  follow.MedicineID,
		TargetID:    follow.TargetID,
		SlotKey:     follow.SlotKey,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return Instance{}, err
	}
	m.put(follow)
	return follow, nil
}

// Verification is a tracker's verdict on an escalated reminder.
type Verification struct {
	TenantID    string
	ReminderKey string
	Actor       string
	Outcome     Outcome
	// MedicineID identifies the dose when ReminderKey is unknown.
	MedicineID string
}

// Verify applies a tracker verification to an ESCALATED instance. The
// outcome is final; later verifications return errs.ErrStaleTransition.
func (m *Manager) Verify(ctx context.Context, v Verification) (Instance, error) {
	if v.ReminderKey == "" {
		return Instance{}, errs.Invalid("reminder_key", "is required")
	}
	if _, err := ParseOutcome(string(v.Outcome)); err != nil {
		return Instance{}, err
	}
	if err := m.requireTracker(ctx, v.TenantID, v.Actor); err != nil {
		return Instance{}, err
	}

	row, err := m.deadlines.Get(ctx, v.ReminderKey)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		if inst, ok := m.cached(v.ReminderKey); ok && inst.TenantID == v.TenantID {
			return inst, m.stale(inst, "verify")
		}
		return m.verifyUntracked(ctx, v)
	case err != nil:
		return Instance{}, err
	}
	if row.TenantID != v.TenantID {
		return Instance{}, fmt.Errorf("reminder %s: %w", v.ReminderKey, errs.ErrNotFound)
	}
	if row.Kind == model.DeadlineSnooze || row.State != model.DeadlineFired {
		inst := m.instanceFor(ctx, row, stateOf(row))
		inst.State = stateOf(row)
		return inst, m.stale(inst, "verify")
	}

	settled, err := m.deadlines.Settle(ctx, v.ReminderKey)
	if err != nil {
		return Instance{}, err
	}
	inst := m.instanceFor(ctx, row, Escalated)
	if !settled {
		inst.State = Verified
		return inst, m.stale(inst, "verify")
	}

	verified := inst
	verified.State = Verified
	verified.Outcome = v.Outcome
	verified.UpdatedAt = m.clock.Now()

	committed, err := m.applyVerification(ctx, verified, v)
	if err != nil && !committed {
		m.revert(ctx, inst, "verify", m.deadlines.Reopen)
		return inst, err
	}

	m.put(verified)
	m.metrics.Verifications.WithLabelValues(string(v.Outcome)).Inc()
	m.logger.Info("reminder: verified",
		zap.String("tenant", verified.TenantID),
		zap.String("reminder_key", verified.Key),
		zap.String("outcome", string(v.Outcome)))
	return verified, err
}

func (m *Manager) verifyUntracked(ctx context.Context, v Verification) (Instance, error) {
	if v.MedicineID == "" {
		return Instance{}, fmt.Errorf("reminder %s: %w", v.ReminderKey, errs.ErrNotFound)
	}
	med, err := m.medicines.Get(ctx, v.TenantID, v.MedicineID)
	if err != nil {
		return Instance{}, err
	}
	now := m.clock.Now()
	inst := Instance{
		Key:          v.ReminderKey,
		TenantID:     v.TenantID,
		MedicineID:   med.ID,
		MedicineName: med.Name,
		TargetID:     med.TargetID,
		State:        Verified,
		Outcome:      v.Outcome,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.metrics.Verifications.WithLabelValues(string(v.Outcome)).Inc()
	_, err = m.applyVerification(ctx, inst, v)
	return inst, err
}

func (m *Manager) applyVerification(ctx context.Context, inst Instance, v Verification) (committed bool, err error) {
	d := m.dose(inst, v.Actor)
	var ev activity.Event
	switch v.Outcome {
	case OutcomeTaken:
		ev = activity.TakenVerified{Dose: d}
	case OutcomeLate:
		ev = activity.TakenLate{Dose: d}
	default:
		ev = activity.MissedConfirmed{Dose: d}
	}
	if v.Outcome != OutcomeMissed {
		if _, err := m.ledger.Decrement(ctx, inst.TenantID, inst.MedicineID, 1, v.Actor); err != nil {
			return false, err
		}
		committed = true
	}
	_, err = m.log.Record(ctx, inst.TenantID, ev)
	return committed, err
}

// Override is a tracker recording an intake outside any reminder.
type Override struct {
	TenantID   string
	MedicineID string
	Actor      string
	Status     activity.IntakeStatus
	Notes      string
}

// RecordIntake applies a manual override. Every call is one more intake
// event; it does not deduplicate against reminder-driven events.
func (m *Manager) RecordIntake(ctx context.Context, o Override) (activity.Entry, error) {
	switch o.Status {
	case activity.IntakeTaken, activity.IntakeTakenLate, activity.IntakeMissed, activity.IntakeUndoMissed:
	default:
		return activity.Entry{}, errs.Invalid("status", "must be taken, taken_late, missed or undo_missed, got %q", o.Status)
	}
	if err := m.requireTracker(ctx, o.TenantID, o.Actor); err != nil {
		return activity.Entry{}, err
	}
	med, err := m.medicines.Get(ctx, o.TenantID, o.MedicineID)
	if err != nil {
		return activity.Entry{}, err
	}

	if o.Status != activity.IntakeMissed {
		if _, err := m.ledger.Decrement(ctx, o.TenantID, med.ID, 1, o.Actor); err != nil {
			return activity.Entry{}, err
		}
	}
	return m.log.Record(ctx, o.TenantID, activity.ManualIntake{
		Dose:   activity.Dose{MedicineID: med.ID, MedicineName: med.Name, TargetID: med.TargetID, Actor: o.Actor},
		Status: o.Status,
		Notes:  o.Notes,
	})
}

func (m *Manager) requireTracker(ctx context.Context, tenantID, actor string) error {
	settings, err := m.medicines.Settings(ctx, tenantID)
	if err != nil {
		return err
	}
	if !settings.IsTracker(actor) {
		return fmt.Errorf("%s is not a tracker: %w", actor, errs.ErrForbidden)
	}
	return nil
}

// stale logs and counts an ignored transition and returns the error callers
// treat as a no-op.
func (m *Manager) stale(inst Instance, op string) error {
	m.metrics.StaleTransitions.Inc()
	m.logger.Info("reminder: stale transition ignored",
		zap.String("tenant", inst.TenantID),
		zap.String("reminder_key", inst.Key),
		zap.String("op", op),
		zap.String("state", string(inst.State)))
	return fmt.Errorf("reminder %s is %s: %w", inst.Key, inst.State, errs.ErrStaleTransition)
}

// stateOf derives the lifecycle state a deadline row implies.
func stateOf(row model.Deadline) State {
	switch {
	case row.Kind == model.DeadlineSnooze && row.State == model.DeadlineArmed:
		return Pending
	case row.State == model.DeadlineArmed:
		return Delivered
	case row.State == model.DeadlineFired:
		return Escalated
	case row.State == model.DeadlineSettled:
		return Verified
	default:
		return Responded
	}
}
