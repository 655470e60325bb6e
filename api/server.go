/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route
	definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. Logger:     Request logging
 2. Recoverer:  Panic recovery (500 instead of crash)
 3. RequestID:  Unique ID per request for tracing
 4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:

	/api/events/*      Event submission and ingestion runs
	/api/employees/*   Per-employee processing and reporting
	/api/attendance/*  Classification runs
	/api/punches/*     Punch lookup

SECURITY NOTE:

	No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Post("/process", h.ProcessEvents)
			r.Post("/retry", h.RetryEvents)
			r.Get("/stats", h.EventStats)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Post("/{id}/events/process", h.ProcessEmployeeEvents)
			r.Post("/{id}/process", h.ProcessEmployee)
			r.Get("/{id}/punches", h.GetPunches)
			r.Get("/{id}/summary", h.GetSummary)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/process", h.ProcessAttendance)
		})

		r.Route("/punches", func(r chi.Router) {
			r.Get("/{id}", h.GetPunch)
		})
	})

	return r
}
