package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/model"
)

// Instance returns the reminder instance for key. Instances evicted from
// memory are rebuilt from their deadline row.
func (m *Manager) Instance(ctx context.Context, tenantID, key string) (Instance, error) {
	if inst, ok := m.cached(key); ok && inst.TenantID == tenantID {
		return inst, nil
	}
	row, err := m.deadlines.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) || (err == nil && row.TenantID != tenantID) {
		return Instance{}, fmt.Errorf("reminder %s: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return Instance{}, err
	}
	return m.instanceFor(ctx, row, stateOf(row)), nil
}

// ResolveResponse maps a target's reply code to a reminder key. An empty code
// selects the target's most recent reminder still awaiting a response.
func (m *Manager) ResolveResponse(ctx context.Context, tenantID, targetID, code string) (string, error) {
	if code == "" {
		row, err := m.deadlines.Latest(ctx, tenantID, targetID, model.DeadlineEscalation, model.DeadlineArmed)
		if err != nil {
			return "", fmt.Errorf("no open reminder for %s: %w", targetID, err)
		}
		return row.ReminderKey, nil
	}
	return m.resolveCode(ctx, tenantID, code, model.DeadlineArmed, func(row model.Deadline) bool {
		return row.TargetID == targetID && row.Kind == model.DeadlineEscalation
	})
}

// ResolveVerification maps a tracker's reply code to an escalated reminder.
func (m *Manager) ResolveVerification(ctx context.Context, tenantID, code string) (string, error) {
	if code == "" {
		return "", errs.Invalid("code", "is required")
	}
	return m.resolveCode(ctx, tenantID, code, model.DeadlineFired, func(row model.Deadline) bool {
		return row.Kind == model.DeadlineEscalation || row.Kind == model.DeadlineVerification
	})
}

// resolveCode picks the newest matching row, preferring rows in state open.
func (m *Manager) resolveCode(ctx context.Context, tenantID, code, open string, match func(model.Deadline) bool) (string, error) {
	rows, err := m.deadlines.FindByPrefix(ctx, tenantID, code)
	if err != nil {
		return "", err
	}
	var fallback string
	for _, row := range rows {
		if !match(row) {
			continue
		}
		if row.State == open {
			return row.ReminderKey, nil
		}
		if fallback == "" {
			fallback = row.ReminderKey
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("reminder code %s: %w", code, errs.ErrNotFound)
	}
	return fallback, nil
}
