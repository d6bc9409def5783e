package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. The inbox handler is optional;
// when nil the /api/inbox group is not mounted.
func SetupRoutes(h *Handlers, ih *InboxHandler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", h.HandleListProfiles)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.HandleCreateRun)
			r.Get("/", h.HandleListRuns)
			r.Get("/{runID}", h.HandleGetRun)
			r.Get("/{runID}/dataset.csv", h.HandleGetDataset)
			r.Get("/{runID}/payloads", h.HandleGetPayloads)
		})

		if ih != nil {
			r.Route("/inbox", func(r chi.Router) {
				r.Get("/status", ih.HandleStatus)
				r.Post("/trigger", ih.HandleTrigger)
			})
		}
	})

	return r
}
