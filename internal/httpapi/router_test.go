package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/auth"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/database"
	"github.com/pathakanu/medguardian/internal/inventory"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/notify"
	"github.com/pathakanu/medguardian/internal/reminder"
	"github.com/pathakanu/medguardian/internal/schedule"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tenant = "guild"

type apiFixture struct {
	srv      http.Handler
	jwt      *auth.JWT
	engine   *reminder.Manager
	notifier *notify.Recorder
	meds     *medicine.Repo
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	ctx := context.Background()

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	db := database.NewTestDB(t)
	s := store.NewGormStore(db)
	c := clock.NewManual(time.Date(2025, 3, 1, 6, 45, 0, 0, kolkata))
	log := activity.NewLog(s, c)
	meds := medicine.NewRepo(s, log, c, "Asia/Kolkata")
	rec := &notify.Recorder{}
	logger := zap.NewNop()

	settings, err := meds.Settings(ctx, tenant)
	require.NoError(t, err)
	settings.Trackers = []string{"tracker-1"}
	_, err = meds.UpdateSettings(ctx, tenant, settings, "tracker-1")
	require.NoError(t, err)

	schedules := schedule.NewService(s, meds, log, c, logger)
	ledger := inventory.NewLedger(meds, log, rec, logger, inventory.DefaultLowStockThreshold)
	engine := reminder.NewManager(reminder.Deps{
		Schedules: schedules,
		Medicines: meds,
		Ledger:    ledger,
		Log:       log,
		Deadlines: store.NewDeadlines(db, c),
		Notifier:  rec,
		Clock:     c,
		Logger:    logger,
	}, reminder.Config{})

	jwtSvc := auth.NewJWT("test-secret")
	h := NewHandler(meds, schedules, engine, ledger, log, c, logger)
	return apiFixture{
		srv:      NewRouter(RouterConfig{JWT: jwtSvc}, h),
		jwt:      jwtSvc,
		engine:   engine,
		notifier: rec,
		meds:     meds,
	}
}

func (f apiFixture) do(t *testing.T, subject, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if subject != "" {
		token, err := f.jwt.Sign(subject, tenant)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func (f apiFixture) addMetformin(t *testing.T) medicine.Medicine {
	t.Helper()
	rr := f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/medicines", medicine.NewMedicine{
		Name: "Metformin", Dosage: "500mg", Frequency: []string{"before_breakfast"}, Inventory: 30, TargetID: "user-1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var med medicine.Medicine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &med))
	return med
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookIsUnmountedWithoutHandler(t *testing.T) {
	router := NewRouter(RouterConfig{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/twilio/webhook/home", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTenantRoutesRequireMatchingToken(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "", http.MethodGet, "/tenants/guild/medicines", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := f.jwt.Sign("tracker-1", "other-guild")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/tenants/guild/medicines", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMedicineLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	med := f.addMetformin(t)

	rr := f.do(t, "user-1", http.MethodGet, "/tenants/guild/medicines?target=user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []medicine.Medicine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rr = f.do(t, "tracker-1", http.MethodPatch, "/tenants/guild/medicines/"+med.ID, map[string]any{"dosage": "850mg"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated medicine.Medicine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "850mg", updated.Dosage)

	rr = f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/medicines/"+med.ID+"/restock", map[string]int{"amount": 10})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, 40, updated.Inventory)

	rr = f.do(t, "tracker-1", http.MethodDelete, "/tenants/guild/medicines/"+med.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, "tracker-1", http.MethodGet, "/tenants/guild/medicines/"+med.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestValidationAndPrivilegeErrors(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/medicines", map[string]any{"dosage": "1 tab"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "name", body.Field)

	rr = f.do(t, "user-1", http.MethodPost, "/tenants/guild/medicines", medicine.NewMedicine{
		Name: "Aspirin", Dosage: "75mg", Frequency: []string{"after_dinner"}, Inventory: 10, TargetID: "user-1",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, "tracker-1", http.MethodGet, "/tenants/guild/logs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRespondOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.addMetformin(t)

	rr := f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/schedules/regenerate", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NoError(t, f.engine.Tick(context.Background(), tenant))
	reminders := f.notifier.Reminders()
	require.Len(t, reminders, 1)
	key := reminders[0].ReminderKey

	rr = f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/reminders/"+key+"/respond", map[string]string{"action": "taken"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, "user-1", http.MethodPost, "/tenants/guild/reminders/"+key+"/respond", map[string]string{"action": "taken"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var inst reminder.Instance
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inst))
	assert.Equal(t, reminder.Responded, inst.State)

	rr = f.do(t, "user-1", http.MethodPost, "/tenants/guild/reminders/"+key+"/respond", map[string]string{"action": "taken"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ignored"`)

	rr = f.do(t, "user-1", http.MethodGet, "/tenants/guild/reminders/"+key, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inst))
	assert.Equal(t, reminder.Responded, inst.State)

	rr = f.do(t, "user-1", http.MethodPost, "/tenants/guild/reminders/"+key+"/respond", map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, "tracker-1", http.MethodGet, "/tenants/guild/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var sum activity.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, "2025-03-01", sum.Date)
	assert.Equal(t, 1, sum.Taken)
}

func TestSettingsUpdateRegeneratesSchedules(t *testing.T) {
	f := newAPIFixture(t)
	f.addMetformin(t)

	s, err := f.meds.Settings(context.Background(), tenant)
	require.NoError(t, err)
	s.MealTimes[medicine.Breakfast] = medicine.Window{Start: "08:00", End: "10:00"}

	rr := f.do(t, "tracker-1", http.MethodPut, "/tenants/guild/settings", s)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, "tracker-1", http.MethodGet, "/tenants/guild/schedules?target=user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var slots []schedule.Slot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, "07:45", slots[0].ReminderTime)

	rr = f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/schedules/"+slots[0].Key+"/active", map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var slot schedule.Slot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &slot))
	assert.False(t, slot.Active)
}

func TestRecordIntakeAndLogs(t *testing.T) {
	f := newAPIFixture(t)
	med := f.addMetformin(t)

	rr := f.do(t, "user-1", http.MethodPost, "/tenants/guild/intake", map[string]string{"medicine_id": med.ID, "status": "taken"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, "tracker-1", http.MethodPost, "/tenants/guild/intake", map[string]string{"medicine_id": med.ID, "status": "taken_late", "notes": "after lunch"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, "tracker-1", http.MethodGet, "/tenants/guild/logs?type=medicine_taken_late_manual&date=2025-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []activity.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, med.ID, entries[0].MedicineID)
}
