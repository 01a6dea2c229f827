/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:           Unique ID per request for tracing
  2. Logger:              Request logging
  3. Recoverer:           Panic recovery (500 instead of crash)
  4. CORS:                Cross-origin requests for frontend
  5. RequireOrganization: Tenant scoping for /api/achievements and /api/users

ROUTE GROUPS:
  /api/achievements/*   Organization catalog
  /api/users/{id}/*     Per-user evaluation, progress and ledger
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. The organization header and user path
  parameter are trusted; the surrounding application resolves both.
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coachwise/achievement-engine/achievement"
)

// OrganizationHeader carries the resolved tenant.
const OrganizationHeader = "X-Organization-ID"

type ctxKey struct{}

// RequireOrganization rejects requests without a tenant and stores it in
// the request context.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if org == "" {
			writeError(w, http.StatusBadRequest, "Missing "+OrganizationHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, achievement.OrganizationID(org))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func organizationFrom(ctx context.Context) achievement.OrganizationID {
	org, _ := ctx.Value(ctxKey{}).(achievement.OrganizationID)
	return org
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OrganizationHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireOrganization)

			r.Route("/achievements", func(r chi.Router) {
				r.Get("/", h.ListAchievements)
				r.Post("/defaults", h.SeedDefaultCatalog)
			})

			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/achievements", h.GetUserAchievements)
				r.Post("/achievements/evaluate", h.EvaluateUser)
				r.Post("/activity", h.RecordActivity)
				r.Get("/ledger", h.GetLedger)
				r.Get("/ledger/reconcile", h.ReconcileLedger)
			})
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
