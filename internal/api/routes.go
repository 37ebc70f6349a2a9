package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth, used by load balancer probes)
	r.Get("/health", h.HealthCheck)

	// Inbound webhook from the call platform
	r.Post("/ringba-webhook", h.RingbaWebhook)

	// Manual trigger surface. GET on sync-payouts is kept so the trigger
	// can be fired from a browser address bar.
	r.Route("/api", func(r chi.Router) {
		r.Get("/sync-payouts", h.SyncPayouts)
		r.Post("/sync-payouts", h.SyncPayouts)
		r.Post("/sync-today-hourly", h.SyncTodayHourly)
		r.Post("/finalize", h.Finalize)
		r.Post("/cleanup-duplicates", h.CleanupDuplicates)
	})

	return r
}
