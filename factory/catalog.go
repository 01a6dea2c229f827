/*
Package factory provides JSON to Go achievement catalog conversion.

PURPOSE:
  Converts JSON achievement definitions into achievement.Definition values.
  Catalogs are configured per organization without code changes: the
  seed scripts and the admin console both speak this format.

JSON SCHEMA:
  [
    {
      "id": "tasks-10",
      "name": "Getting Things Done",
      "description": "Complete 10 tasks",
      "icon": "check-circle",
      "reward_points": 50,
      "metric": "tasks_completed",
      "threshold": 10,
      "max_progress": 10,
      "active": true,
      "auto_evaluate": true,
      "sort_order": 20
    }
  ]

DEFAULTS:
  - active:        true
  - auto_evaluate: true, always false for "manual"
  - max_progress:  threshold (1 when threshold is 0)
  - metric:        aliases "streak" and "gems_earned" are accepted;
                   unrecognized kinds are kept as-is and stay inert

USAGE:
  f := factory.NewCatalogFactory()
  defs, err := f.ParseCatalog(factory.DefaultCatalogJSON(), "org-1")

SEE ALSO:
  - presets.go:             Default coaching catalog
  - achievement/types.go:   Definition type and invariants
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coachwise/achievement-engine/achievement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AchievementJSON is the JSON representation of one catalog entry.
type AchievementJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Icon         string `json:"icon,omitempty"`
	RewardPoints int64  `json:"reward_points"`
	Metric       string `json:"metric"`
	Threshold    int64  `json:"threshold"`
	MaxProgress  int64  `json:"max_progress,omitempty"`
	Active       *bool  `json:"active,omitempty"`
	AutoEvaluate *bool  `json:"auto_evaluate,omitempty"`
	SortOrder    int    `json:"sort_order,omitempty"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts JSON catalogs to definitions.
type CatalogFactory struct{}

// NewCatalogFactory creates a new catalog factory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON array of achievements for one organization.
// Duplicate ids are rejected.
func (f *CatalogFactory) ParseCatalog(jsonStr string, orgID achievement.OrganizationID) ([]achievement.Definition, error) {
	var entries []AchievementJSON
	if err := json.Unmarshal([]byte(jsonStr), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	defs := make([]achievement.Definition, 0, len(entries))
	for _, aj := range entries {
		if seen[aj.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", achievement.ErrInvalidDefinition, aj.ID)
		}
		seen[aj.ID] = true

		def, err := f.FromJSON(aj, orgID)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// FromJSON converts one AchievementJSON to a validated Definition.
func (f *CatalogFactory) FromJSON(aj AchievementJSON, orgID achievement.OrganizationID) (achievement.Definition, error) {
	kind := parseMetricKind(aj.Metric)

	def := achievement.Definition{
		ID:             achievement.AchievementID(strings.TrimSpace(aj.ID)),
		OrganizationID: orgID,
		Name:           aj.Name,
		Description:    aj.Description,
		Icon:           aj.Icon,
		RewardPoints:   aj.RewardPoints,
		MetricKind:     kind,
		Threshold:      aj.Threshold,
		MaxProgress:    aj.MaxProgress,
		Active:         boolOr(aj.Active, true),
		AutoEvaluate:   boolOr(aj.AutoEvaluate, true) && !kind.IsManual(),
		SortOrder:      aj.SortOrder,
	}
	if kind.IsManual() {
		def.Threshold = 0
	}
	if def.MaxProgress == 0 {
		def.MaxProgress = def.EffectiveMaxProgress()
	}
	if def.Name == "" {
		def.Name = string(def.ID)
	}

	if err := def.Validate(); err != nil {
		return achievement.Definition{}, err
	}
	return def, nil
}

// ToJSON converts a Definition back to its JSON form.
func (f *CatalogFactory) ToJSON(def achievement.Definition) AchievementJSON {
	active, auto := def.Active, def.AutoEvaluate
	return AchievementJSON{
		ID:           string(def.ID),
		Name:         def.Name,
		Description:  def.Description,
		Icon:         def.Icon,
		RewardPoints: def.RewardPoints,
		Metric:       string(def.MetricKind),
		Threshold:    def.Threshold,
		MaxProgress:  def.EffectiveMaxProgress(),
		Active:       &active,
		AutoEvaluate: &auto,
		SortOrder:    def.SortOrder,
	}
}

func parseMetricKind(s string) achievement.MetricKind {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "streak", "checkin_streak", "check_in_streak":
		return achievement.MetricCheckinStreak
	case "gems_earned", "currency_earned", "gems":
		return achievement.MetricCurrencyEarned
	case "tasks_completed", "tasks":
		return achievement.MetricTasksCompleted
	case "messages_sent", "messages":
		return achievement.MetricMessagesSent
	default:
		return achievement.MetricKind(k)
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
