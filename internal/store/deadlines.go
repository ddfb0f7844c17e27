package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/model"
	"gorm.io/gorm"
)

// Deadlines is the persisted deadline table scanned by the tick driver.
// Every state change is a compare-and-set on the row, so exactly one caller
// wins a race between cancel, fire and settle.
// Timestamps are written in UTC from the injected clock so that string
// comparison in SQLite orders them correctly.
type Deadlines struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewDeadlines wraps db.
func NewDeadlines(db *gorm.DB, c clock.Clock) *Deadlines {
	return &Deadlines{db: db, clock: c}
}

// Put inserts or replaces the row for d.ReminderKey.
func (d *Deadlines) Put(ctx context.Context, row model.Deadline) error {
	now := d.clock.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()
	row.DueAt = row.DueAt.UTC()
	row.UpdatedAt = now
	if err := d.db.WithContext(ctx).Save(&row).Error; err != nil {
		return errs.Unavailable("put deadline", err)
	}
	return nil
}

// Get returns the row for key or errs.ErrNotFound.
func (d *Deadlines) Get(ctx context.Context, key string) (model.Deadline, error) {
	var row model.Deadline
	err := d.db.WithContext(ctx).Where("reminder_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Deadline{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Deadline{}, errs.Unavailable("get deadline", err)
	}
	return row, nil
}

// SetHandle records the delivery handle without touching the row state.
func (d *Deadlines) SetHandle(ctx context.Context, key, handle string) error {
	err := d.db.WithContext(ctx).Model(&model.Deadline{}).
		Where("reminder_key = ?", key).
		Update("delivery_handle", handle).Error
	if err != nil {
		return errs.Unavailable("set deadline handle", err)
	}
	return nil
}

// FindByPrefix lists a tenant's rows whose key starts with prefix, newest
// first.
func (d *Deadlines) FindByPrefix(ctx context.Context, tenantID, prefix string) ([]model.Deadline, error) {
	var rows []model.Deadline
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND reminder_key LIKE ?", tenantID, stripWildcards(prefix)+"%").
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unavailable("find deadlines", err)
	}
	return rows, nil
}

// Latest returns the most recently touched row of a target with the given
// kind and state, or errs.ErrNotFound.
func (d *Deadlines) Latest(ctx context.Context, tenantID, targetID, kind, state string) (model.Deadline, error) {
	var row model.Deadline
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND target_id = ? AND kind = ? AND state = ?", tenantID, targetID, kind, state).
		Order("updated_at desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Deadline{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Deadline{}, errs.Unavailable("latest deadline", err)
	}
	return row, nil
}

// Due lists armed rows of a tenant whose deadline is at or before now.
func (d *Deadlines) Due(ctx context.Context, tenantID string, now time.Time) ([]model.Deadline, error) {
	var rows []model.Deadline
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND state = ? AND due_at <= ?", tenantID, model.DeadlineArmed, now.UTC()).
		Order("due_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unavailable("due deadlines", err)
	}
	return rows, nil
}

// Cancel moves an armed row to canceled. Canceling a fired, canceled or
// missing row is a no-op and reports false.
func (d *Deadlines) Cancel(ctx context.Context, key string) (bool, error) {
	return d.transition(ctx, key, model.DeadlineArmed, model.DeadlineCanceled)
}

// Claim moves an armed row to fired. Only the caller that gets true may run
// the row's side effects.
func (d *Deadlines) Claim(ctx context.Context, key string) (bool, error) {
	return d.transition(ctx, key, model.DeadlineArmed, model.DeadlineFired)
}

// Settle moves a fired row to settled.
func (d *Deadlines) Settle(ctx context.Context, key string) (bool, error) {
	return d.transition(ctx, key, model.DeadlineFired, model.DeadlineSettled)
}

// Rearm moves a canceled row back to armed. It undoes a Cancel whose
// response effects could not be stored.
func (d *Deadlines) Rearm(ctx context.Context, key string) (bool, error) {
	return d.transition(ctx, key, model.DeadlineCanceled, model.DeadlineArmed)
}

// Reopen moves a settled row back to fired. It undoes a Settle whose
// verification effects could not be stored.
func (d *Deadlines) Reopen(ctx context.Context, key string) (bool, error) {
	return d.transition(ctx, key, model.DeadlineSettled, model.DeadlineFired)
}

// Purge deletes canceled and settled rows last touched before cutoff.
func (d *Deadlines) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", []string{model.DeadlineCanceled, model.DeadlineSettled}, cutoff.UTC()).
		Delete(&model.Deadline{})
	if res.Error != nil {
		return 0, errs.Unavailable("purge deadlines", res.Error)
	}
	return res.RowsAffected, nil
}

func (d *Deadlines) transition(ctx context.Context, key, from, to string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&model.Deadline{}).
		Where("reminder_key = ? AND state = ?", key, from).
		Updates(map[string]any{"state": to, "updated_at": d.clock.Now().UTC()})
	if res.Error != nil {
		return false, errs.Unavailable("deadline "+from+"->"+to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func stripWildcards(s string) string {
	return strings.NewReplacer(`%`, ``, `_`, ``).Replace(s)
}
