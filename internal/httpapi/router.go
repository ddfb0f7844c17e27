// Package httpapi exposes the tracker API, the Twilio webhook, health and
// metrics over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pathakanu/medguardian/internal/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig selects the optional parts of the router.
type RouterConfig struct {
	// JWT protects the tenant routes. Nil leaves them unmounted.
	JWT                  *auth.JWT
	Webhook              http.Handler
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
}

// NewRouter mounts the health, metrics and webhook routes plus the
// token-guarded tenant API when cfg.JWT is set.
func NewRouter(cfg RouterConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: cfg.CORSAllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Webhook != nil {
		r.Post("/twilio/webhook/{tenant}", cfg.Webhook.ServeHTTP)
	}

	if cfg.JWT == nil {
		return r
	}

	r.Route("/tenants/{tenant}", func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.JWT))
		r.Use(requireTenant)

		r.Get("/medicines", h.ListMedicines)
		r.Post("/medicines", h.AddMedicine)
		r.Get("/medicines/{id}", h.GetMedicine)
		r.Patch("/medicines/{id}", h.UpdateMedicine)
		r.Delete("/medicines/{id}", h.DeleteMedicine)
		r.Post("/medicines/{id}/restock", h.Restock)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Get("/schedules", h.ListSchedules)
		r.Post("/schedules/regenerate", h.RegenerateSchedules)
		r.Post("/schedules/{slot}/active", h.SetSlotActive)

		r.Get("/reminders/{key}", h.GetReminder)
		r.Post("/reminders/{key}/respond", h.Respond)
		r.Post("/reminders/{key}/verify", h.Verify)
		r.Post("/intake", h.RecordIntake)

		r.Get("/logs", h.Logs)
		r.Get("/summary", h.Summary)
	})

	return r
}

// requireTenant rejects tokens issued for another tenant.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok || id.Tenant != chi.URLParam(r, "tenant") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
