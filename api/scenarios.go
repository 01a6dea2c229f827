/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the database with a seeded catalog and users whose counters
  sit at interesting points relative to the thresholds. Loading a scenario
  does NOT evaluate anyone: call the evaluate hook afterwards to watch
  unlocks happen.

AVAILABLE SCENARIOS:
  first-week:     New coachee, one task done, two-day streak
  power-user:     Crosses several thresholds at once (multi-unlock pass)
  two-orgs:       Same user id in two organizations, isolated catalogs

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "power-user"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/factory"
	"github.com/coachwise/achievement-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:             "first-week",
		Name:           "First Week",
		Description:    "New coachee with one completed task and a two-day check-in streak",
		OrganizationID: "org-acme",
	},
	{
		ID:             "power-user",
		Name:           "Power User",
		Description:    "12 tasks, 8-day streak and 30 messages: one pass unlocks several achievements",
		OrganizationID: "org-acme",
	},
	{
		ID:             "two-orgs",
		Name:           "Two Organizations",
		Description:    "Same user in two organizations; unlocks never cross the tenant boundary",
		OrganizationID: "org-acme",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Log.Info("scenario loaded", "scenario_id", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "first-week":
		load = h.loadFirstWeekScenario
	case "power-user":
		load = h.loadPowerUserScenario
	case "two-orgs":
		load = h.loadTwoOrgsScenario
	default:
		return fmt.Errorf("unknown scenario: %s", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return load(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFirstWeekScenario(ctx context.Context) error {
	const org, user = "org-acme", "user-maya"
	if _, err := h.SeedCatalog(ctx, org, factory.DefaultCatalogJSON()); err != nil {
		return err
	}
	if err := h.completeTasks(ctx, user, org, 1); err != nil {
		return err
	}
	return h.checkinDays(ctx, user, org, 2)
}

func (h *Handler) loadPowerUserScenario(ctx context.Context) error {
	const org, user = "org-acme", "user-jordan"
	if _, err := h.SeedCatalog(ctx, org, factory.DefaultCatalogJSON()); err != nil {
		return err
	}
	if err := h.completeTasks(ctx, user, org, 12); err != nil {
		return err
	}
	if err := h.checkinDays(ctx, user, org, 8); err != nil {
		return err
	}
	for i := 0; i < 30; i++ {
		if err := h.Store.SaveMessage(ctx, sqlite.Message{
			UserID: user, OrganizationID: org, Body: fmt.Sprintf("update %d", i+1),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadTwoOrgsScenario(ctx context.Context) error {
	const user = "user-sam"
	if _, err := h.SeedCatalog(ctx, "org-acme", factory.DefaultCatalogJSON()); err != nil {
		return err
	}
	// The second organization only runs a slimmer catalog with a higher bar.
	if _, err := h.SeedCatalog(ctx, "org-globex", `[
		{"id": "tasks-10", "name": "Ten Down", "reward_points": 20, "metric": "tasks_completed", "threshold": 10}
	]`); err != nil {
		return err
	}
	if err := h.completeTasks(ctx, user, "org-acme", 10); err != nil {
		return err
	}
	return h.completeTasks(ctx, user, "org-globex", 3)
}

func (h *Handler) completeTasks(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID, n int) error {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		if err := h.Store.SaveTask(ctx, sqlite.Task{
			UserID:         userID,
			OrganizationID: orgID,
			Title:          fmt.Sprintf("Task %d", i+1),
			Status:         sqlite.TaskStatusCompleted,
			CompletedAt:    &now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// checkinDays records n consecutive check-ins ending today.
func (h *Handler) checkinDays(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID, n int) error {
	today := time.Now().UTC()
	for i := n - 1; i >= 0; i-- {
		if _, err := h.Store.RecordCheckin(ctx, userID, orgID, today.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}
	return nil
}
