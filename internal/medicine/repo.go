package medicine

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/pathakanu/medguardian/internal/tenantlock"
)

type medicinesDocument struct {
	Version   string     `json:"version"`
	Medicines []Medicine `json:"medicines"`
}

// Repo reads and writes the medicines and settings documents. Writes are
// serialized per tenant; each one rewrites the whole document.
type Repo struct {
	store     store.DocumentStore
	log       *activity.Log
	clock     clock.Clock
	locks     *tenantlock.Locker
	defaultTZ string
}

// NewRepo creates a Repo. defaultTZ fills in settings documents that carry no
// timezone.
func NewRepo(s store.DocumentStore, log *activity.Log, c clock.Clock, defaultTZ string) *Repo {
	return &Repo{store: s, log: log, clock: c, locks: tenantlock.New(), defaultTZ: defaultTZ}
}

func (r *Repo) load(ctx context.Context, tenantID string) (medicinesDocument, error) {
	var doc medicinesDocument
	if err := store.ReadJSON(ctx, r.store, tenantID, store.KeyMedicines, &doc); err != nil {
		return medicinesDocument{}, err
	}
	doc.Version = "1.0"
	return doc, nil
}

// List returns every medicine of the tenant.
func (r *Repo) List(ctx context.Context, tenantID string) ([]Medicine, error) {
	doc, err := r.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return doc.Medicines, nil
}

// ForTarget returns the medicines bound to targetID.
func (r *Repo) ForTarget(ctx context.Context, tenantID, targetID string) ([]Medicine, error) {
	all, err := r.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []Medicine
	for _, m := range all {
		if m.TargetID == targetID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get returns one medicine or errs.ErrNotFound.
func (r *Repo) Get(ctx context.Context, tenantID, id string) (Medicine, error) {
	all, err := r.List(ctx, tenantID)
	if err != nil {
		return Medicine{}, err
	}
	for _, m := range all {
		if m.ID == id {
			return m, nil
		}
	}
	return Medicine{}, fmt.Errorf("medicine %s: %w", id, errs.ErrNotFound)
}

// Add validates and stores a new medicine.
func (r *Repo) Add(ctx context.Context, tenantID string, in NewMedicine, actor string) (Medicine, error) {
	tags, err := in.validate()
	if err != nil {
		return Medicine{}, err
	}

	med := Medicine{
		ID:        "med_" + uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Dosage:    strings.TrimSpace(in.Dosage),
		Frequency: tags,
		Inventory: in.Inventory,
		TargetID:  strings.TrimSpace(in.TargetID),
		AddedBy:   actor,
		CreatedAt: r.clock.Now().UTC(),
	}

	unlock := r.locks.Lock(tenantID)
	doc, err := r.load(ctx, tenantID)
	if err == nil {
		doc.Medicines = append(doc.Medicines, med)
		err = store.WriteJSON(ctx, r.store, tenantID, store.KeyMedicines, doc)
	}
	unlock()
	if err != nil {
		return Medicine{}, err
	}

	_, err = r.log.Record(ctx, tenantID, activity.MedicineAdded{Dose: dose(med, actor)})
	return med, err
}

// Update applies p and logs the changed fields.
func (r *Repo) Update(ctx context.Context, tenantID, id string, p Patch, actor string) (Medicine, error) {
	var tags []FrequencyTag
	if p.Frequency != nil {
		var err error
		if tags, err = ParseFrequencies(p.Frequency); err != nil {
			return Medicine{}, err
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Medicine{}, errs.Invalid("name", "required")
	}
	if p.TargetID != nil && strings.TrimSpace(*p.TargetID) == "" {
		return Medicine{}, errs.Invalid("target_id", "required")
	}

	var before Medicine
	after, err := r.mutate(ctx, tenantID, id, actor, func(m *Medicine) {
		before = *m
		if p.Name != nil {
			m.Name = strings.TrimSpace(*p.Name)
		}
		if p.Dosage != nil {
			m.Dosage = strings.TrimSpace(*p.Dosage)
		}
		if tags != nil {
			m.Frequency = tags
		}
		if p.TargetID != nil {
			m.TargetID = strings.TrimSpace(*p.TargetID)
		}
	})
	if err != nil {
		return Medicine{}, err
	}

	_, err = r.log.Record(ctx, tenantID, activity.MedicineUpdated{Dose: dose(after, actor), Changes: diff(before, after)})
	return after, err
}

// AdjustInventory applies fn to the stored inventory and returns the counts
// before and after. The caller owns clamping and alerting.
func (r *Repo) AdjustInventory(ctx context.Context, tenantID, id, actor string, fn func(old int) int) (Medicine, int, error) {
	var old int
	med, err := r.mutate(ctx, tenantID, id, actor, func(m *Medicine) {
		old = m.Inventory
		m.Inventory = fn(old)
	})
	return med, old, err
}

func (r *Repo) mutate(ctx context.Context, tenantID, id, actor string, fn func(*Medicine)) (Medicine, error) {
	unlock := r.locks.Lock(tenantID)
	defer unlock()

	doc, err := r.load(ctx, tenantID)
	if err != nil {
		return Medicine{}, err
	}
	for i := range doc.Medicines {
		if doc.Medicines[i].ID != id {
			continue
		}
		fn(&doc.Medicines[i])
		now := r.clock.Now().UTC()
		doc.Medicines[i].UpdatedAt = &now
		doc.Medicines[i].UpdatedBy = actor
		if err := store.WriteJSON(ctx, r.store, tenantID, store.KeyMedicines, doc); err != nil {
			return Medicine{}, err
		}
		return doc.Medicines[i], nil
	}
	return Medicine{}, fmt.Errorf("medicine %s: %w", id, errs.ErrNotFound)
}

// Delete removes a medicine. Schedule slots that reference it stay until the
// next regeneration.
func (r *Repo) Delete(ctx context.Context, tenantID, id, actor string) error {
	unlock := r.locks.Lock(tenantID)
	doc, err := r.load(ctx, tenantID)
	if err != nil {
		unlock()
		return err
	}
	idx := -1
	for i, m := range doc.Medicines {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		unlock()
		return fmt.Errorf("medicine %s: %w", id, errs.ErrNotFound)
	}
	deleted := doc.Medicines[idx]
	doc.Medicines = append(doc.Medicines[:idx], doc.Medicines[idx+1:]...)
	err = store.WriteJSON(ctx, r.store, tenantID, store.KeyMedicines, doc)
	unlock()
	if err != nil {
		return err
	}

	_, err = r.log.Record(ctx, tenantID, activity.MedicineDeleted{Dose: dose(deleted, actor)})
	return err
}

// Settings returns the tenant settings, defaults included.
func (r *Repo) Settings(ctx context.Context, tenantID string) (Settings, error) {
	var s Settings
	if err := store.ReadJSON(ctx, r.store, tenantID, store.KeySettings, &s); err != nil {
		return Settings{}, err
	}
	if s.Timezone == "" {
		s.Timezone = r.defaultTZ
	}
	return s, nil
}

// UpdateSettings validates and stores s as the tenant's settings.
func (r *Repo) UpdateSettings(ctx context.Context, tenantID string, s Settings, actor string) (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	unlock := r.locks.Lock(tenantID)
	before, err := r.Settings(ctx, tenantID)
	if err != nil {
		unlock()
		return Settings{}, err
	}
	now := r.clock.Now().UTC()
	s.Version = "1.0"
	s.UpdatedAt = &now
	s.UpdatedBy = actor
	err = store.WriteJSON(ctx, r.store, tenantID, store.KeySettings, s)
	unlock()
	if err != nil {
		return Settings{}, err
	}

	_, err = r.log.Record(ctx, tenantID, activity.SettingsUpdated{Actor: actor, Changes: settingsDiff(before, s)})
	return s, err
}

func dose(m Medicine, actor string) activity.Dose {
	return activity.Dose{MedicineID: m.ID, MedicineName: m.Name, TargetID: m.TargetID, Actor: actor}
}

func diff(before, after Medicine) map[string]activity.Change {
	changes := map[string]activity.Change{}
	add := func(field string, old, updated any) {
		if !reflect.DeepEqual(old, updated) {
			changes[field] = activity.Change{Old: old, New: updated}
		}
	}
	add("name", before.Name, after.Name)
	add("dosage", before.Dosage, after.Dosage)
	add("frequency", before.Frequency, after.Frequency)
	add("inventory", before.Inventory, after.Inventory)
	add("target_id", before.TargetID, after.TargetID)
	return changes
}

func settingsDiff(before, after Settings) map[string]activity.Change {
	changes := map[string]activity.Change{}
	if !reflect.DeepEqual(before.MealTimes, after.MealTimes) {
		changes["meal_times"] = activity.Change{Old: before.MealTimes, New: after.MealTimes}
	}
	if before.Timezone != after.Timezone {
		changes["timezone"] = activity.Change{Old: before.Timezone, New: after.Timezone}
	}
	if before.ReminderAdvanceMinutes != after.ReminderAdvanceMinutes {
		changes["reminder_advance_minutes"] = activity.Change{Old: before.ReminderAdvanceMinutes, New: after.ReminderAdvanceMinutes}
	}
	if !reflect.DeepEqual(before.Trackers, after.Trackers) {
		changes["trackers"] = activity.Change{Old: before.Trackers, New: after.Trackers}
	}
	return changes
}
