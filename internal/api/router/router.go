package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentalink/clinic-platform/internal/appointments"
	"github.com/dentalink/clinic-platform/internal/dentists"
	httpmiddleware "github.com/dentalink/clinic-platform/internal/http/middleware"
	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/internal/payments"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	DentistsHandler     *dentists.Handler
	PaymentsHandler     *payments.Handler
	JWTSecret           string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (gateway webhook, health check, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.PaymentsHandler != nil {
			public.Post("/api/payments/callback", cfg.PaymentsHandler.Callback)
		}
	})

	// Authenticated API
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.JWTSecret))

		if cfg.DentistsHandler != nil {
			api.Get("/dentists", cfg.DentistsHandler.ListDentists)
		}

		if cfg.AppointmentsHandler != nil {
			api.Route("/appointments", func(appts chi.Router) {
				appts.Post("/", cfg.AppointmentsHandler.Create)
				appts.Get("/", cfg.AppointmentsHandler.List)
				appts.Get("/slots", cfg.AppointmentsHandler.TimeSlots)
				appts.Patch("/{id}/cancel", cfg.AppointmentsHandler.Cancel)
				appts.With(httpmiddleware.RequireRole(identity.RoleDentist, identity.RoleAdmin)).
					Patch("/{id}/status", cfg.AppointmentsHandler.UpdateStatus)
				appts.With(httpmiddleware.RequireRole(identity.RoleDentist, identity.RoleAdmin)).
					Patch("/{id}/meeting", cfg.AppointmentsHandler.SetMeeting)
			})
		}

		if cfg.PaymentsHandler != nil {
			api.Route("/payments", func(pay chi.Router) {
				pay.Post("/initiate", cfg.PaymentsHandler.Initiate)
				pay.Get("/{checkoutRequestId}", cfg.PaymentsHandler.Status)
				pay.With(httpmiddleware.RequireRole(identity.RoleAdmin)).Get("/", cfg.PaymentsHandler.List)
				pay.With(httpmiddleware.RequireRole(identity.RoleAdmin)).Get("/stats", cfg.PaymentsHandler.Overview)
				pay.With(httpmiddleware.RequireRole(identity.RoleAdmin)).Get("/report", cfg.PaymentsHandler.Report)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
