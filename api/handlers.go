/*
handlers.go - HTTP API handlers for the achievement engine

PURPOSE:
  Exposes the trigger evaluator and its read models via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the
  achievement package.

ENDPOINTS:
  Catalog:
    GET    /api/achievements                      List the organization's catalog
    POST   /api/achievements/defaults             Seed the default catalog

  Users:
    GET    /api/users/{id}/achievements           Achievement screen (progress view)
    POST   /api/users/{id}/achievements/evaluate  Run one evaluation pass
    POST   /api/users/{id}/activity               Record an action, then evaluate
    GET    /api/users/{id}/ledger                 Gems history
    GET    /api/users/{id}/ledger/reconcile       Cached total vs ledger

TENANCY:
  Every /api route except scenarios requires X-Organization-ID (see
  RequireOrganization). User ids come from the path and are trusted; session
  resolution happens upstream.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, missing organization
  - 500: Store failures on read paths
  The evaluate hook never fails because of achievement problems: failed
  candidates are counted in "skipped" and retried on the next trigger.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/factory"
	"github.com/coachwise/achievement-engine/logging"
	"github.com/coachwise/achievement-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          *sqlite.Store
	Evaluator      *achievement.Evaluator
	Metrics        *achievement.MetricRegistry
	CatalogFactory *factory.CatalogFactory
	Log            *logging.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires an evaluator over store, with the legacy badge mirror on.
func NewHandler(store *sqlite.Store, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	metrics := achievement.DefaultMetrics(store)
	ev := achievement.NewEvaluator(store, metrics, log.With("component", "evaluator"))
	ev.Mirror = store

	return &Handler{
		Store:          store,
		Evaluator:      ev,
		Metrics:        metrics,
		CatalogFactory: factory.NewCatalogFactory(),
		Log:            log,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListAchievements returns the organization's active catalog.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	orgID := organizationFrom(r.Context())

	defs, err := h.Store.ListDefinitions(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list achievements", err)
		return
	}

	dtos := make([]AchievementDTO, len(defs))
	for i, d := range defs {
		dtos[i] = toAchievementDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SeedDefaultCatalog upserts the default catalog for the organization.
func (h *Handler) SeedDefaultCatalog(w http.ResponseWriter, r *http.Request) {
	orgID := organizationFrom(r.Context())

	n, err := h.SeedCatalog(r.Context(), orgID, factory.DefaultCatalogJSON())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed catalog", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"seeded": n})
}

// SeedCatalog parses catalogJSON and saves every definition for orgID.
func (h *Handler) SeedCatalog(ctx context.Context, orgID achievement.OrganizationID, catalogJSON string) (int, error) {
	defs, err := h.CatalogFactory.ParseCatalog(catalogJSON, orgID)
	if err != nil {
		return 0, err
	}
	for _, d := range defs {
		if err := h.Store.SaveDefinition(ctx, d); err != nil {
			return 0, err
		}
	}
	return len(defs), nil
}

// =============================================================================
// USER ACHIEVEMENT HANDLERS
// =============================================================================

// GetUserAchievements returns the user's achievement screen.
func (h *Handler) GetUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := achievement.UserID(chi.URLParam(r, "id"))
	orgID := organizationFrom(r.Context())

	statuses, err := achievement.ProgressView(r.Context(), h.Store, h.Store, h.Metrics, userID, orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load achievements", err)
		return
	}

	dtos := make([]UserAchievementDTO, len(statuses))
	for i, s := range statuses {
		dtos[i] = toUserAchievementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// EvaluateUser runs one evaluation pass. This is the post-action hook.
func (h *Handler) EvaluateUser(w http.ResponseWriter, r *http.Request) {
	userID := achievement.UserID(chi.URLParam(r, "id"))
	orgID := organizationFrom(r.Context())

	report := h.Evaluator.Evaluate(r.Context(), userID, orgID)
	writeJSON(w, http.StatusOK, EvaluateResponse{
		Unlocked: toUnlockResultDTOs(report.Unlocked),
		Skipped:  len(report.Failures),
	})
}

// RecordActivity updates the materialized counters the way the task,
// check-in and messaging features would, then evaluates.
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	userID := achievement.UserID(chi.URLParam(r, "id"))
	orgID := organizationFrom(r.Context())

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	ctx := r.Context()
	now := time.Now().UTC()
	var err error
	switch req.Type {
	case ActivityTaskCompleted:
		for i := 0; i < count && err == nil; i++ {
			err = h.Store.SaveTask(ctx, sqlite.Task{
				UserID:         userID,
				OrganizationID: orgID,
				Title:          req.Note,
				Status:         sqlite.TaskStatusCompleted,
				CompletedAt:    &now,
			})
		}
	case ActivityMessageSent:
		for i := 0; i < count && err == nil; i++ {
			err = h.Store.SaveMessage(ctx, sqlite.Message{UserID: userID, OrganizationID: orgID, Body: req.Note})
		}
	case ActivityCheckin:
		day := now
		if req.Date != "" {
			day, err = time.Parse(time.DateOnly, req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
				return
			}
		}
		_, err = h.Store.RecordCheckin(ctx, userID, orgID, day)
	case ActivityGemsAwarded:
		if req.Amount <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be positive", nil)
			return
		}
		err = h.Store.AwardGems(ctx, achievement.LedgerEntry{
			UserID:         userID,
			OrganizationID: orgID,
			SourceType:     "activity",
			Amount:         req.Amount,
			Description:    req.Note,
		})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown activity type %q", req.Type), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record activity", err)
		return
	}

	report := h.Evaluator.Evaluate(ctx, userID, orgID)
	writeJSON(w, http.StatusOK, EvaluateResponse{
		Unlocked: toUnlockResultDTOs(report.Unlocked),
		Skipped:  len(report.Failures),
	})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the user's gems history, oldest first.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := achievement.UserID(chi.URLParam(r, "id"))
	orgID := organizationFrom(r.Context())

	entries, err := h.Store.LedgerEntries(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load gems history", err)
		return
	}
	total, err := h.Store.CurrencyTotal(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load gem total", err)
		return
	}

	resp := LedgerResponse{Total: total, Entries: make([]LedgerEntryDTO, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = LedgerEntryDTO{
			ID:          e.ID,
			SourceType:  e.SourceType,
			SourceID:    e.SourceID,
			Amount:      e.Amount,
			Description: e.Description,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReconcileLedger compares the cached gem total with the ledger sum.
func (h *Handler) ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	userID := achievement.UserID(chi.URLParam(r, "id"))
	orgID := organizationFrom(r.Context())

	rec, err := achievement.Reconcile(r.Context(), h.Store, userID, orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile gems", err)
		return
	}
	if !rec.Consistent() {
		h.Log.Warn("gem ledger drift", "user_id", userID, "organization_id", orgID, "drift", rec.Drift())
	}
	writeJSON(w, http.StatusOK, ReconcileDTO{
		CachedTotal:      rec.CachedTotal,
		LedgerTotal:      rec.LedgerTotal,
		AchievementTotal: rec.AchievementTotal,
		Entries:          rec.Entries,
		Drift:            rec.Drift(),
		Consistent:       rec.Consistent(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
