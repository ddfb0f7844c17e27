package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/database"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/notify"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ledger   *Ledger
	meds     *medicine.Repo
	log      *activity.Log
	notifier *notify.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := store.NewGormStore(database.NewTestDB(t))
	c := clock.NewManual(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	log := activity.NewLog(s, c)
	meds := medicine.NewRepo(s, log, c, "Asia/Kolkata")
	rec := &notify.Recorder{}

	ctx := context.Background()
	settings, err := meds.Settings(ctx, "guild")
	require.NoError(t, err)
	settings.Trackers = []string{"tracker-1"}
	_, err = meds.UpdateSettings(ctx, "guild", settings, "tracker-1")
	require.NoError(t, err)

	return fixture{
		ledger:   NewLedger(meds, log, rec, zap.NewNop(), DefaultLowStockThreshold),
		meds:     meds,
		log:      log,
		notifier: rec,
	}
}

func (f fixture) add(t *testing.T, inventory int) medicine.Medicine {
	t.Helper()
	med, err := f.meds.Add(context.Background(), "guild", medicine.NewMedicine{
		Name: "Metformin", Dosage: "500mg", Frequency: []string{"after_lunch"}, Inventory: inventory, TargetID: "user-1",
	}, "tracker-1")
	require.NoError(t, err)
	return med
}

func (f fixture) lowEntries(t *testing.T) []activity.Entry {
	t.Helper()
	entries, err := f.log.Entries(context.Background(), "guild", activity.Filter{Kinds: []activity.Kind{activity.KindInventoryLow}})
	require.NoError(t, err)
	return entries
}

func TestDecrementAlertsOnEachStepIntoBand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	med := f.add(t, 7)

	n, err := f.ledger.Decrement(ctx, "guild", med.ID, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Empty(t, f.lowEntries(t))

	n, err = f.ledger.Decrement(ctx, "guild", med.ID, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, f.lowEntries(t), 1)

	n, err = f.ledger.Decrement(ctx, "guild", med.ID, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, f.lowEntries(t), 2)

	alerts := f.notifier.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, notify.AlertLowStock, alerts[1].Kind)
	assert.Equal(t, []string{"tracker-1"}, alerts[1].Trackers)
	assert.Equal(t, 4, alerts[1].Remaining)
}

func TestDecrementClampsAtZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	med := f.add(t, 1)

	n, err := f.ledger.Decrement(ctx, "guild", med.ID, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.ledger.Decrement(ctx, "guild", med.ID, 3, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Empty(t, f.lowEntries(t), "zero is out of the low-stock band")
	got, err := f.meds.Get(ctx, "guild", med.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Inventory)
}

func TestDecrementAlertFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.AlertErr = assert.AnError
	med := f.add(t, 3)

	n, err := f.ledger.Decrement(ctx, "guild", med.ID, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.lowEntries(t), 1)
}

func TestDecrementUnknownMedicine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.ledger.Decrement(context.Background(), "guild", "med_missing", 1, "user-1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.ledger.Decrement(context.Background(), "guild", "med_missing", 0, "user-1")
	assert.True(t, errs.IsValidation(err))
}

func TestRestock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	med := f.add(t, 2)

	got, err := f.ledger.Restock(ctx, "guild", med.ID, 28, "tracker-1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Inventory)

	entries, err := f.log.Entries(ctx, "guild", activity.Filter{Kinds: []activity.Kind{activity.KindMedicineUpdated}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tracker-1", entries[0].Actor)

	_, err = f.ledger.Restock(ctx, "guild", med.ID, -1, "tracker-1")
	assert.True(t, errs.IsValidation(err))
}
