package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/pathakanu/medguardian/internal/tenantlock"
	"go.uber.org/zap"
)

type schedulesDocument struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Schedules   []Slot    `json:"schedules"`
}

// Service owns the tenant's stored slot set.
type Service struct {
	store     store.DocumentStore
	medicines *medicine.Repo
	log       *activity.Log
	clock     clock.Clock
	logger    *zap.Logger
	locks     *tenantlock.Locker
}

// NewService creates a Service.
func NewService(s store.DocumentStore, medicines *medicine.Repo, log *activity.Log, c clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:     s,
		medicines: medicines,
		log:       log,
		clock:     c,
		logger:    logger.Named("schedule"),
		locks:     tenantlock.New(),
	}
}

// Load returns the stored slots.
func (s *Service) Load(ctx context.Context, tenantID string) ([]Slot, error) {
	var doc schedulesDocument
	if err := store.ReadJSON(ctx, s.store, tenantID, store.KeySchedules, &doc); err != nil {
		return nil, err
	}
	return doc.Schedules, nil
}

// ForTarget returns the stored slots of one target.
func (s *Service) ForTarget(ctx context.Context, tenantID, targetID string) ([]Slot, error) {
	slots, err := s.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []Slot
	for _, slot := range slots {
		if slot.TargetID == targetID {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Regenerate recompiles every slot and replaces the stored set. Activation
// overrides made with SetActive are discarded.
func (s *Service) Regenerate(ctx context.Context, tenantID, actor string) ([]Slot, error) {
	meds, err := s.medicines.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.medicines.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	slots, skips := Compile(meds, cfg)
	for _, sk := range skips {
		s.logger.Warn("schedule: skipped frequency tag",
			zap.String("tenant", tenantID),
			zap.String("medicine", sk.MedicineID),
			zap.String("tag", string(sk.Tag)),
			zap.String("reason", sk.Reason))
	}

	unlock := s.locks.Lock(tenantID)
	err = store.WriteJSON(ctx, s.store, tenantID, store.KeySchedules, schedulesDocument{
		Version:     "1.0",
		GeneratedAt: s.clock.Now().UTC(),
		Schedules:   slots,
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule: regenerated", zap.String("tenant", tenantID), zap.Int("slots", len(slots)))
	if _, err := s.log.Record(ctx, tenantID, activity.SchedulesRegenerated{Actor: actor, Slots: len(slots), Skipped: len(skips)}); err != nil {
		return slots, err
	}
	return slots, nil
}

// SetActive toggles one slot until the next regeneration.
func (s *Service) SetActive(ctx context.Context, tenantID, slotKey string, active bool) (Slot, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	var doc schedulesDocument
	if err := store.ReadJSON(ctx, s.store, tenantID, store.KeySchedules, &doc); err != nil {
		return Slot{}, err
	}
	for i := range doc.Schedules {
		if doc.Schedules[i].Key != slotKey {
			continue
		}
		doc.Schedules[i].Active = active
		if err := store.WriteJSON(ctx, s.store, tenantID, store.KeySchedules, doc); err != nil {
			return Slot{}, err
		}
		return doc.Schedules[i], nil
	}
	return Slot{}, fmt.Errorf("slot %s: %w", slotKey, errs.ErrNotFound)
}
