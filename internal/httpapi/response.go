package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pathakanu/medguardian/internal/errs"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps the engine's error taxonomy to HTTP statuses. Stale
// transitions are not failures and answer 200 with status "ignored".
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, errs.ErrStaleTransition):
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, errs.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, errs.ErrStoreUnavailable):
		h.logger.Error("httpapi: store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable, retry"})
	default:
		h.logger.Error("httpapi: request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "server error"})
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Invalid("body", "bad json: %v", err)
	}
	return nil
}
