// Package inventory keeps medicine stock counts and raises low-stock alerts.
package inventory

import (
	"context"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/metrics"
	"github.com/pathakanu/medguardian/internal/notify"
	"go.uber.org/zap"
)

// DefaultLowStockThreshold is the count at or below which trackers are alerted.
const DefaultLowStockThreshold = 5

// Ledger changes inventory counts. All decrements go through it.
type Ledger struct {
	medicines *medicine.Repo
	log       *activity.Log
	notifier  notify.Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
	threshold int
}

// NewLedger creates a Ledger. A threshold below 1 selects the default.
func NewLedger(meds *medicine.Repo, log *activity.Log, n notify.Notifier, logger *zap.Logger, threshold int) *Ledger {
	if threshold < 1 {
		threshold = DefaultLowStockThreshold
	}
	return &Ledger{
		medicines: meds,
		log:       log,
		notifier:  n,
		logger:    logger.Named("inventory"),
		metrics:   metrics.NewMetrics(),
		threshold: threshold,
	}
}

// Decrement lowers a medicine's count by amount, never below zero, and returns
// the new count. Landing in the low-stock band from a different count logs
// inventory_low and alerts trackers. Alert failures are logged only.
func (l *Ledger) Decrement(ctx context.Context, tenantID, medicineID string, amount int, actor string) (int, error) {
	if amount < 1 {
		return 0, errs.Invalid("amount", "must be positive, got %d", amount)
	}
	med, old, err := l.medicines.AdjustInventory(ctx, tenantID, medicineID, actor, func(old int) int {
		return max(old-amount, 0)
	})
	if err != nil {
		return 0, err
	}

	if med.Inventory != old && med.Inventory > 0 && med.Inventory <= l.threshold {
		l.lowStock(ctx, tenantID, med, actor)
	}
	return med.Inventory, nil
}

func (l *Ledger) lowStock(ctx context.Context, tenantID string, med medicine.Medicine, actor string) {
	l.metrics.LowStockAlerts.Inc()
	fields := []zap.Field{
		zap.String("tenant", tenantID),
		zap.String("medicine", med.ID),
		zap.Int("remaining", med.Inventory),
	}
	l.logger.Info("inventory: low stock", fields...)

	ev := activity.InventoryLow{
		Dose:      activity.Dose{MedicineID: med.ID, MedicineName: med.Name, TargetID: med.TargetID, Actor: actor},
		Remaining: med.Inventory,
	}
	if _, err := l.log.Record(ctx, tenantID, ev); err != nil {
		l.logger.Error("inventory: record low stock", append(fields, zap.Error(err))...)
	}

	settings, err := l.medicines.Settings(ctx, tenantID)
	if err != nil {
		l.logger.Error("inventory: load trackers", append(fields, zap.Error(err))...)
		return
	}
	err = l.notifier.AlertTrackers(ctx, notify.Alert{
		Kind:         notify.AlertLowStock,
		TenantID:     tenantID,
		Trackers:     settings.Trackers,
		MedicineID:   med.ID,
		MedicineName: med.Name,
		TargetID:     med.TargetID,
		Remaining:    med.Inventory,
	})
	if err != nil {
		l.logger.Error("inventory: alert trackers", append(fields, zap.Error(err))...)
	}
}

// Restock raises a medicine's count by amount and logs the change.
func (l *Ledger) Restock(ctx context.Context, tenantID, medicineID string, amount int, actor string) (medicine.Medicine, error) {
	if amount < 1 {
		return medicine.Medicine{}, errs.Invalid("amount", "must be positive, got %d", amount)
	}
	med, old, err := l.medicines.AdjustInventory(ctx, tenantID, medicineID, actor, func(old int) int {
		return old + amount
	})
	if err != nil {
		return medicine.Medicine{}, err
	}

	_, err = l.log.Record(ctx, tenantID, activity.MedicineUpdated{
		Dose:    activity.Dose{MedicineID: med.ID, MedicineName: med.Name, TargetID: med.TargetID, Actor: actor},
		Changes: map[string]activity.Change{"inventory": {Old: old, New: med.Inventory}},
	})
	return med, err
}
