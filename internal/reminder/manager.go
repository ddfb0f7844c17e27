package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/inventory"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/metrics"
	"github.com/pathakanu/medguardian/internal/model"
	"github.com/pathakanu/medguardian/internal/notify"
	"github.com/pathakanu/medguardian/internal/schedule"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/pathakanu/medguardian/internal/tenantlock"
	"go.uber.org/zap"
)

// Config holds the lifecycle delays. Zero fields take defaults.
type Config struct {
	Escalation        time.Duration
	Snooze            time.Duration
	Tolerance         time.Duration
	DedupTTL          time.Duration
	DeadlineRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.Escalation <= 0 {
		c.Escalation = 30 * time.Minute
	}
	if c.Snooze <= 0 {
		c.Snooze = 15 * time.Minute
	}
	if c.Tolerance <= 0 {
		c.Tolerance = schedule.DefaultTolerance
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = DefaultDedupTTL
	}
	if c.DeadlineRetention <= 0 {
		c.DeadlineRetention = 7 * 24 * time.Hour
	}
	return c
}

// Deps are the collaborators of a Manager, wired once at startup.
type Deps struct {
	Schedules *schedule.Service
	Medicines *medicine.Repo
	Ledger    *inventory.Ledger
	Log       *activity.Log
	Deadlines *store.Deadlines
	Notifier  notify.Notifier
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Manager owns every reminder instance. The deadline table is authoritative
// for transitions; the in-memory instances are a view over it that is lost on
// restart and rebuilt from deadline rows on demand.
type Manager struct {
	schedules *schedule.Service
	medicines *medicine.Repo
	ledger    *inventory.Ledger
	log       *activity.Log
	deadlines *store.Deadlines
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cfg       Config

	locks *tenantlock.Locker
	dedup *Dedup

	mu        sync.Mutex
	instances map[string]Instance
}

// NewManager creates a Manager.
func NewManager(d Deps, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		schedules: d.Schedules,
		medicines: d.Medicines,
		ledger:    d.Ledger,
		log:       d.Log,
		deadlines: d.Deadlines,
		notifier:  d.Notifier,
		clock:     d.Clock,
		logger:    d.Logger.Named("reminder"),
		metrics:   metrics.NewMetrics(),
		cfg:       cfg,
		locks:     tenantlock.New(),
		dedup:     NewDedup(cfg.DedupTTL),
		instances: make(map[string]Instance),
	}
}

// Tick runs one scheduler pass for a tenant: it sweeps expired bookkeeping,
// delivers due slots not yet sent today and fires due deadlines. Work for one
// tenant is serialized; failures of single slots are collected and do not
// stop the pass.
func (m *Manager) Tick(ctx context.Context, tenantID string) error {
	unlock := m.locks.Lock(tenantID)
	defer unlock()

	began := time.Now()
	defer func() { m.metrics.TickDuration.Observe(time.Since(began).Seconds()) }()

	m.sweep(m.clock.Now())

	var errList []error
	if err := m.deliverDue(ctx, tenantID); err != nil {
		errList = append(errList, err)
	}
	if err := m.processDeadlines(ctx, tenantID); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

// ProcessDeadlines fires a tenant's due escalation and snooze deadlines.
func (m *Manager) ProcessDeadlines(ctx context.Context, tenantID string) error {
	unlock := m.locks.Lock(tenantID)
	defer unlock()
	return m.processDeadlines(ctx, tenantID)
}

// Housekeeping purges settled and canceled deadline rows past retention.
func (m *Manager) Housekeeping(ctx context.Context) (int64, error) {
	return m.deadlines.Purge(ctx, m.clock.Now().Add(-m.cfg.DeadlineRetention).UTC())
}

// Dedup exposes the sent-today cache.
func (m *Manager) Dedup() *Dedup { return m.dedup }

func (m *Manager) sweep(now time.Time) {
	if n := m.dedup.Sweep(now); n > 0 {
		m.logger.Debug("reminder: swept dedup entries", zap.Int("removed", n))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, inst := range m.instances {
		if now.Sub(inst.UpdatedAt) > m.cfg.DedupTTL {
			delete(m.instances, key)
		}
	}
}

func (m *Manager) deliverDue(ctx context.Context, tenantID string) error {
	settings, err := m.medicines.Settings(ctx, tenantID)
	if err != nil {
		return err
	}
	now := m.clock.Now().In(settings.Location())
	date := now.Format(time.DateOnly)

	slots, err := m.schedules.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	due := schedule.Due(slots, now, m.cfg.Tolerance)
	if len(due) == 0 {
		return nil
	}

	meds, err := m.medicines.List(ctx, tenantID)
	if err != nil {
		return err
	}
	byID := make(map[string]medicine.Medicine, len(meds))
	for _, med := range meds {
		byID[med.ID] = med
	}

	var errList []error
	for _, slot := range due {
		if m.dedup.Seen(tenantID, slot.Key, date) {
			m.metrics.DedupSkipped.Inc()
			continue
		}
		med, ok := byID[slot.MedicineID]
		if !ok {
			m.logger.Warn("reminder: slot references deleted medicine",
				zap.String("tenant", tenantID), zap.String("slot", slot.Key), zap.String("medicine", slot.MedicineID))
			continue
		}
		inst := Instance{
			Key:          uuid.NewString(),
			TenantID:     tenantID,
			SlotKey:      slot.Key,
			MedicineID:   med.ID,
			MedicineName: med.Name,
			TargetID:     med.TargetID,
			State:        Pending,
		}
		if err := m.deliver(ctx, inst, med.Dosage, slot.ReminderTime); err != nil {
			errList = append(errList, fmt.Errorf("slot %s: %w", slot.Key, err))
			continue
		}
		m.dedup.Mark(tenantID, slot.Key, date, m.clock.Now())
	}
	return errors.Join(errList...)
}

// deliver arms the escalation deadline, sends the reminder and moves inst to
// DELIVERED. The deadline row exists before the message goes out so that a
// fast reply always finds it.
func (m *Manager) deliver(ctx context.Context, inst Instance, dosage, reminderTime string) error {
	now := m.clock.Now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	fields := []zap.Field{
		zap.String("tenant", inst.TenantID),
		zap.String("medicine", inst.MedicineID),
		zap.String("target", inst.TargetID),
		zap.String("reminder_key", inst.Key),
	}

	row := model.Deadline{
		ReminderKey: inst.Key,
		TenantID:    inst.TenantID,
		Kind:        model.DeadlineEscalation,
		State:       model.DeadlineArmed,
		DueAt:       now.Add(m.cfg.Escalation).UTC(),
		MedicineID:  inst.MedicineID,
		TargetID:    inst.TargetID,
		SlotKey:     inst.SlotKey,
		CreatedAt:   inst.CreatedAt.UTC(),
	}
	if err := m.deadlines.Put(ctx, row); err != nil {
		return err
	}

	handle, err := m.notifier.SendReminder(ctx, notify.Delivery{
		TenantID:     inst.TenantID,
		TargetID:     inst.TargetID,
		MedicineID:   inst.MedicineID,
		MedicineName: inst.MedicineName,
		Dosage:       dosage,
		ReminderKey:  inst.Key,
		ReminderTime: reminderTime,
		Snoozed:      inst.Snoozed,
	})
	if err != nil {
		if _, cerr := m.deadlines.Cancel(ctx, inst.Key); cerr != nil {
			m.logger.Error("reminder: cancel undelivered deadline", append(fields, zap.Error(cerr))...)
		}
		m.logger.Error("reminder: send failed", append(fields, zap.Error(err))...)
		return fmt.Errorf("send reminder: %w", err)
	}
	if err := m.deadlines.SetHandle(ctx, inst.Key, handle); err != nil {
		m.logger.Error("reminder: store delivery handle", append(fields, zap.Error(err))...)
	}

	inst.State = Delivered
	inst.Handle = handle
	inst.UpdatedAt = now
	m.put(inst)
	m.metrics.Delivered.Inc()
	m.logger.Info("reminder: delivered", fields...)

	_, err = m.log.Record(ctx, inst.TenantID, activity.ReminderSent{
		Dose:         m.dose(inst, "system"),
		SlotKey:      inst.SlotKey,
		ReminderTime: reminderTime,
		Snoozed:      inst.Snoozed,
	})
	if err != nil {
		m.logger.Error("reminder: record delivery", append(fields, zap.Error(err))...)
	}
	return nil
}

func (m *Manager) processDeadlines(ctx context.Context, tenantID string) error {
	rows, err := m.deadlines.Due(ctx, tenantID, m.clock.Now().UTC())
	if err != nil {
		return err
	}
	var errList []error
	for _, row := range rows {
		claimed, err := m.deadlines.Claim(ctx, row.ReminderKey)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if !claimed {
			// canceled by a response after Due listed it
			continue
		}
		switch row.Kind {
		case model.DeadlineEscalation:
			m.escalate(ctx, row)
		case model.DeadlineSnooze:
			if err := m.fireSnooze(ctx, row); err != nil {
				errList = append(errList, err)
			}
		default:
			m.logger.Warn("reminder: unexpected armed deadline",
				zap.String("tenant", tenantID), zap.String("reminder_key", row.ReminderKey), zap.String("kind", row.Kind))
		}
	}
	return errors.Join(errList...)
}

// escalate runs after the escalation row was claimed. Notification failures
// are logged and never undo the transition.
func (m *Manager) escalate(ctx context.Context, row model.Deadline) {
	inst := m.instanceFor(ctx, row, Delivered)
	inst.State = Escalated
	inst.UpdatedAt = m.clock.Now()
	m.put(inst)
	m.metrics.Escalations.Inc()

	fields := []zap.Field{
		zap.String("tenant", inst.TenantID),
		zap.String("medicine", inst.MedicineID),
		zap.String("target", inst.TargetID),
		zap.String("reminder_key", inst.Key),
	}
	m.logger.Info("reminder: escalated", fields...)

	if _, err := m.log.Record(ctx, inst.TenantID, activity.MissedAuto{Dose: m.dose(inst, "system")}); err != nil {
		m.logger.Error("reminder: record escalation", append(fields, zap.Error(err))...)
	}
	m.alert(ctx, inst, notify.AlertMissedAuto, fields)
	if inst.Handle != "" {
		if err := m.notifier.MarkExpired(ctx, inst.TenantID, inst.Handle); err != nil {
			m.logger.Error("reminder: mark expired", append(fields, zap.Error(err))...)
		}
	}
}

// fireSnooze delivers a snoozed instance. Its row is reused as the
// instance's escalation deadline. A failed send leaves the snooze armed.
func (m *Manager) fireSnooze(ctx context.Context, row model.Deadline) error {
	inst := m.instanceFor(ctx, row, Pending)
	inst.Snoozed = true

	dosage := ""
	if med, err := m.medicines.Get(ctx, inst.TenantID, inst.MedicineID); err == nil {
		dosage = med.Dosage
		inst.MedicineName = med.Name
	}
	if err := m.deliver(ctx, inst, dosage, ""); err != nil {
		// deliver canceled the row; re-arm it as a snooze due now so the
		// next tick retries the send.
		row.State = model.DeadlineArmed
		row.DueAt = m.clock.Now().UTC()
		if perr := m.deadlines.Put(ctx, row); perr != nil {
			m.logger.Error("reminder: re-arm snoozed reminder",
				zap.String("tenant", row.TenantID), zap.String("reminder_key", row.ReminderKey), zap.Error(perr))
		}
		return fmt.Errorf("snoozed reminder %s: %w", inst.Key, err)
	}
	return nil
}

func (m *Manager) alert(ctx context.Context, inst Instance, kind notify.AlertKind, fields []zap.Field) {
	settings, err := m.medicines.Settings(ctx, inst.TenantID)
	if err != nil {
		m.logger.Error("reminder: load trackers", append(fields, zap.Error(err))...)
		return
	}
	err = m.notifier.AlertTrackers(ctx, notify.Alert{
		Kind:         kind,
		TenantID:     inst.TenantID,
		Trackers:     settings.Trackers,
		MedicineID:   inst.MedicineID,
		MedicineName: inst.MedicineName,
		TargetID:     inst.TargetID,
		ReminderKey:  inst.Key,
	})
	if err != nil {
		m.logger.Error("reminder: alert trackers", append(fields, zap.Error(err))...)
	}
}

func (m *Manager) dose(inst Instance, actor string) activity.Dose {
	return activity.Dose{
		MedicineID:   inst.MedicineID,
		MedicineName: inst.MedicineName,
		TargetID:     inst.TargetID,
		ReminderKey:  inst.Key,
		Actor:        actor,
	}
}

func (m *Manager) put(inst Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.Key] = inst
}

func (m *Manager) cached(key string) (Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[key]
	return inst, ok
}

// instanceFor returns the cached instance for row, or rebuilds it in state
// when the process restarted since the row was written.
func (m *Manager) instanceFor(ctx context.Context, row model.Deadline, state State) Instance {
	if inst, ok := m.cached(row.ReminderKey); ok {
		return inst
	}
	inst := Instance{
		Key:        row.ReminderKey,
		TenantID:   row.TenantID,
		SlotKey:    row.SlotKey,
		MedicineID: row.MedicineID,
		TargetID:   row.TargetID,
		State:      state,
		Handle:     row.DeliveryHandle,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if med, err := m.medicines.Get(ctx, row.TenantID, row.MedicineID); err == nil {
		inst.MedicineName = med.Name
	}
	return inst
}
