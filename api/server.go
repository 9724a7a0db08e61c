/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/instruments/*   Instrument management, ledgers, generation
  /api/entries/*       Single-entry operations
  /api/external/*      Bank-account mirror entries
  /api/regenerate      Batch regeneration

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Instrument routes
		r.Route("/instruments", func(r chi.Router) {
			r.Get("/", h.ListInstruments)
			r.Post("/", h.CreateInstrument)
			r.Get("/{id}", h.GetInstrument)
			r.Put("/{id}", h.UpdateInstrument)
			r.Delete("/{id}", h.DeactivateInstrument)
			r.Get("/{id}/entries", h.ListEntries)
			r.Get("/{id}/stats", h.GetStats)
			r.Post("/{id}/purchases", h.RecordPurchase)
			r.Post("/{id}/generate", h.Generate)
			r.Post("/{id}/regenerate", h.Regenerate)
		})

		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		// External (bank-account) entry routes
		r.Route("/external", func(r chi.Router) {
			r.Get("/{id}", h.GetExternal)
			r.Put("/{id}", h.UpdateExternal)
		})

		// Batch regeneration
		r.Post("/regenerate", h.RegenerateAll)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
