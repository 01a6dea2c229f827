/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: AchievementJSON type
*/
package api

import (
	"time"

	"github.com/coachwise/achievement-engine/achievement"
)

// =============================================================================
// CATALOG
// =============================================================================

// AchievementDTO represents a catalog definition.
type AchievementDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon,omitempty"`
	RewardPoints int64  `json:"reward_points"`
	Metric       string `json:"metric"`
	Threshold    int64  `json:"threshold"`
	MaxProgress  int64  `json:"max_progress"`
	Active       bool   `json:"active"`
	AutoEvaluate bool   `json:"auto_evaluate"`
}

func toAchievementDTO(d achievement.Definition) AchievementDTO {
	return AchievementDTO{
		ID:           string(d.ID),
		Name:         d.Name,
		Description:  d.Description,
		Icon:         d.Icon,
		RewardPoints: d.RewardPoints,
		Metric:       string(d.MetricKind),
		Threshold:    d.Threshold,
		MaxProgress:  d.EffectiveMaxProgress(),
		Active:       d.Active,
		AutoEvaluate: d.AutoEvaluate,
	}
}

// =============================================================================
// USER ACHIEVEMENTS
// =============================================================================

// UserAchievementDTO is one row of a user's achievement screen.
type UserAchievementDTO struct {
	AchievementDTO
	Unlocked    bool    `json:"unlocked"`
	UnlockedAt  *string `json:"unlocked_at,omitempty"`
	Progress    int64   `json:"progress"`
	ProgressPct int     `json:"progress_pct"`
}

func toUserAchievementDTO(s achievement.Status) UserAchievementDTO {
	dto := UserAchievementDTO{
		AchievementDTO: toAchievementDTO(s.Definition),
		Unlocked:       s.Unlocked,
		Progress:       s.Progress,
	}
	if s.UnlockedAt != nil {
		at := s.UnlockedAt.Format(time.RFC3339)
		dto.UnlockedAt = &at
	}
	if s.MaxProgress > 0 {
		dto.ProgressPct = int(min(s.Progress*100/s.MaxProgress, 100))
	}
	if s.Unlocked {
		dto.ProgressPct = 100
	}
	return dto
}

// UnlockResultDTO describes an achievement unlocked by a pass.
type UnlockResultDTO struct {
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	RewardPoints  int64  `json:"reward_points"`
	Metric        string `json:"metric"`
}

func toUnlockResultDTOs(results []achievement.UnlockResult) []UnlockResultDTO {
	out := make([]UnlockResultDTO, len(results))
	for i, r := range results {
		out[i] = UnlockResultDTO{
			AchievementID: string(r.AchievementID),
			Name:          r.Name,
			RewardPoints:  r.RewardPoints,
			Metric:        string(r.MetricKind),
		}
	}
	return out
}

// EvaluateResponse is returned by the evaluation hook.
type EvaluateResponse struct {
	Unlocked []UnlockResultDTO `json:"unlocked"`
	Skipped  int               `json:"skipped"` // candidates that failed and will be retried
}

// =============================================================================
// ACTIVITY
// =============================================================================

// Activity types accepted by RecordActivity.
const (
	ActivityTaskCompleted = "task_completed"
	ActivityCheckin       = "checkin"
	ActivityMessageSent   = "message_sent"
	ActivityGemsAwarded   = "gems_awarded"
)

// ActivityRequest records an action that may move a metric.
type ActivityRequest struct {
	Type   string `json:"type"`
	Count  int    `json:"count,omitempty"`  // repetitions, default 1
	Date   string `json:"date,omitempty"`   // YYYY-MM-DD, check-ins only
	Amount int64  `json:"amount,omitempty"` // gems_awarded only
	Note   string `json:"note,omitempty"`   // task title, message body, award reason
}

// =============================================================================
// LEDGER
// =============================================================================

// LedgerEntryDTO represents one gems history row.
type LedgerEntryDTO struct {
	ID          string `json:"id"`
	SourceType  string `json:"source_type"`
	SourceID    string `json:"source_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// LedgerResponse wraps a user's gems history with the cached total.
type LedgerResponse struct {
	Total   int64            `json:"total"`
	Entries []LedgerEntryDTO `json:"entries"`
}

// ReconcileDTO reports drift between the cached total and the ledger.
type ReconcileDTO struct {
	CachedTotal      int64 `json:"cached_total"`
	LedgerTotal      int64 `json:"ledger_total"`
	AchievementTotal int64 `json:"achievement_total"`
	Entries          int   `json:"entries"`
	Drift            int64 `json:"drift"`
	Consistent       bool  `json:"consistent"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	OrganizationID string `json:"organization_id"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
