package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/auth"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/inventory"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/reminder"
	"github.com/pathakanu/medguardian/internal/schedule"
	"go.uber.org/zap"
)

// Handler serves the tenant routes.
type Handler struct {
	meds      *medicine.Repo
	schedules *schedule.Service
	engine    *reminder.Manager
	ledger    *inventory.Ledger
	log       *activity.Log
	clock     clock.Clock
	logger    *zap.Logger
}

func NewHandler(meds *medicine.Repo, schedules *schedule.Service, engine *reminder.Manager, ledger *inventory.Ledger, log *activity.Log, c clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		meds:      meds,
		schedules: schedules,
		engine:    engine,
		ledger:    ledger,
		log:       log,
		clock:     c,
		logger:    logger.Named("httpapi"),
	}
}

func tenantOf(r *http.Request) string { return chi.URLParam(r, "tenant") }

func actorOf(r *http.Request) string {
	id, _ := auth.IdentityFromContext(r.Context())
	return id.Subject
}

// requireMutator allows configuration changes by trackers only. A tenant
// with no trackers yet accepts any authenticated caller so it can be set up.
func (h *Handler) requireMutator(ctx context.Context, tenantID, actor string) error {
	s, err := h.meds.Settings(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(s.Trackers) == 0 || s.IsTracker(actor) {
		return nil
	}
	return errs.ErrForbidden
}

func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	var (
		meds []medicine.Medicine
		err  error
	)
	if target := r.URL.Query().Get("target"); target != "" {
		meds, err = h.meds.ForTarget(r.Context(), tenantOf(r), target)
	} else {
		meds, err = h.meds.List(r.Context(), tenantOf(r))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if meds == nil {
		meds = []medicine.Medicine{}
	}
	writeJSON(w, http.StatusOK, meds)
}

func (h *Handler) AddMedicine(w http.ResponseWriter, r *http.Request) {
	var in medicine.NewMedicine
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	med, err := h.meds.Add(r.Context(), tenantOf(r), in, actorOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, med)
}

func (h *Handler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	med, err := h.meds.Get(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (h *Handler) UpdateMedicine(w http.ResponseWriter, r *http.Request) {
	var p medicine.Patch
	if err := decode(r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	med, err := h.meds.Update(r.Context(), tenantOf(r), chi.URLParam(r, "id"), p, actorOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (h *Handler) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.meds.Delete(r.Context(), tenantOf(r), chi.URLParam(r, "id"), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restockRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var in restockRequest
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	med, err := h.ledger.Restock(r.Context(), tenantOf(r), chi.URLParam(r, "id"), in.Amount, actorOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.meds.Settings(r.Context(), tenantOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings stores new meal windows and recompiles the schedule set.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in medicine.Settings
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	tenant, actor := tenantOf(r), actorOf(r)
	if err := h.requireMutator(r.Context(), tenant, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.meds.UpdateSettings(r.Context(), tenant, in, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.schedules.Regenerate(r.Context(), tenant, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	var (
		slots []schedule.Slot
		err   error
	)
	if target := r.URL.Query().Get("target"); target != "" {
		slots, err = h.schedules.ForTarget(r.Context(), tenantOf(r), target)
	} else {
		slots, err = h.schedules.Load(r.Context(), tenantOf(r))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) RegenerateSchedules(w http.ResponseWriter, r *http.Request) {
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	slots, err := h.schedules.Regenerate(r.Context(), tenantOf(r), actorOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) SetSlotActive(w http.ResponseWriter, r *http.Request) {
	var in activeRequest
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.Active == nil {
		h.writeError(w, r, errs.Invalid("active", "required"))
		return
	}
	if err := h.requireMutator(r.Context(), tenantOf(r), actorOf(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	slot, err := h.schedules.SetActive(r.Context(), tenantOf(r), chi.URLParam(r, "slot"), *in.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	inst, err := h.engine.Instance(r.Context(), tenantOf(r), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type respondRequest struct {
	Action     string `json:"action"`
	MedicineID string `json:"medicine_id"`
}

func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var in respondRequest
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	action, err := reminder.ParseAction(in.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	inst, err := h.engine.Respond(r.Context(), reminder.Response{
		TenantID:    tenantOf(r),
		ReminderKey: chi.URLParam(r, "key"),
		Actor:       actorOf(r),
		Action:      action,
		MedicineID:  in.MedicineID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type verifyRequest struct {
	Outcome    string `json:"outcome"`
	MedicineID string `json:"medicine_id"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	outcome, err := reminder.ParseOutcome(in.Outcome)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	inst, err := h.engine.Verify(r.Context(), reminder.Verification{
		TenantID:    tenantOf(r),
		ReminderKey: chi.URLParam(r, "key"),
		Actor:       actorOf(r),
		Outcome:     outcome,
		MedicineID:  in.MedicineID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type intakeRequest struct {
	MedicineID string `json:"medicine_id"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
}

func (h *Handler) RecordIntake(w http.ResponseWriter, r *http.Request) {
	var in intakeRequest
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.engine.RecordIntake(r.Context(), reminder.Override{
		TenantID:   tenantOf(r),
		MedicineID: in.MedicineID,
		Actor:      actorOf(r),
		Status:     activity.IntakeStatus(in.Status),
		Notes:      in.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := activity.Filter{TargetID: q.Get("target"), Date: q.Get("date")}
	if raw := q.Get("type"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			f.Kinds = append(f.Kinds, activity.Kind(strings.TrimSpace(k)))
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, errs.Invalid("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	if f.Date != "" {
		s, err := h.meds.Settings(r.Context(), tenantOf(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Location = s.Location()
	}
	entries, err := h.log.Entries(r.Context(), tenantOf(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Summary reports one day's compliance, today in the tenant timezone by
// default.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.meds.Settings(r.Context(), tenantOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	loc := s.Location()
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.clock.Now().In(loc).Format("2006-01-02")
	}
	sum, err := h.log.DailySummary(r.Context(), tenantOf(r), date, loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
