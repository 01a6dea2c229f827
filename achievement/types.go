/*
Package achievement provides the achievement trigger evaluation engine.

PURPOSE:
  Given a user and an organization, scan the organization's achievement
  catalog, read the user's already-materialized metrics, and unlock (exactly
  once) every achievement whose threshold is met. Each unlock credits the
  user's gem balance and appends a gems-history ledger entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - Definition:   An unlockable achievement (metric kind + threshold + reward)
  - MetricKind:   Which user statistic the threshold is compared against
  - Unlock:       The one-time record that a user earned an achievement
  - LedgerEntry:  Append-only audit record of a gem credit
  - UnlockResult: What the evaluator hands back to the caller

DESIGN PRINCIPLES:
  1. Data-driven: every rule lives in the catalog, not in code
  2. Monotonic: Locked -> Unlocked, never back
  3. Tenant-scoped: every read and write carries an OrganizationID
  4. Auditable: every gem credit has exactly one ledger entry

USAGE:
  ev := achievement.NewEvaluator(store, achievement.DefaultMetrics(store), log)
  unlocked := ev.EvaluateAchievements(ctx, "user-1", "org-1")

SEE ALSO:
  - evaluator.go: The trigger evaluation pass
  - metrics.go:   Metric resolver registry
  - store.go:     Persistence interfaces
*/
package achievement

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type OrganizationID string
type AchievementID string

// =============================================================================
// METRIC KIND
// =============================================================================

// MetricKind identifies the user statistic an achievement threshold is
// compared against. Kinds without a registered resolver are inert.
type MetricKind string

const (
	MetricTasksCompleted MetricKind = "tasks_completed"
	MetricCheckinStreak  MetricKind = "checkin_streak"
	MetricCurrencyEarned MetricKind = "currency_earned"
	MetricMessagesSent   MetricKind = "messages_sent"
	MetricManual         MetricKind = "manual"
)

// IsManual reports whether achievements of this kind are only unlocked by
// an administrator.
func (k MetricKind) IsManual() bool { return k == MetricManual }

// =============================================================================
// DEFINITION - Catalog entry
// =============================================================================

// Definition is an organization-scoped achievement from the catalog.
type Definition struct {
	ID             AchievementID
	OrganizationID OrganizationID
	Name           string
	Description    string
	Icon           string
	RewardPoints   int64
	MetricKind     MetricKind
	Threshold      int64 // ignored for MetricManual
	MaxProgress    int64 // display cap; defaults to Threshold
	Active         bool
	AutoEvaluate   bool
	SortOrder      int
}

// EffectiveMaxProgress returns MaxProgress, falling back to Threshold (or 1).
func (d Definition) EffectiveMaxProgress() int64 {
	if d.MaxProgress >= 1 {
		return d.MaxProgress
	}
	if d.Threshold >= 1 {
		return d.Threshold
	}
	return 1
}

// Satisfied reports whether metric meets the threshold. Inclusive.
func (d Definition) Satisfied(metric int64) bool {
	return metric >= d.Threshold
}

// CappedProgress clamps a metric value to [0, EffectiveMaxProgress].
func (d Definition) CappedProgress(metric int64) int64 {
	if metric < 0 {
		return 0
	}
	return min(metric, d.EffectiveMaxProgress())
}

// Evaluable reports whether the evaluator should consider this definition.
func (d Definition) Evaluable() bool {
	return d.Active && d.AutoEvaluate && !d.MetricKind.IsManual()
}

// Validate checks the catalog invariants for a single definition.
func (d Definition) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	case d.OrganizationID == "":
		return fmt.Errorf("%w: %s: organization is required", ErrInvalidDefinition, d.ID)
	case d.MetricKind == "":
		return fmt.Errorf("%w: %s: metric kind is required", ErrInvalidDefinition, d.ID)
	case d.RewardPoints < 0:
		return fmt.Errorf("%w: %s: reward points must be non-negative", ErrInvalidDefinition, d.ID)
	case d.Threshold < 0:
		return fmt.Errorf("%w: %s: threshold must be non-negative", ErrInvalidDefinition, d.ID)
	case d.MaxProgress < 0:
		return fmt.Errorf("%w: %s: max progress must be positive", ErrInvalidDefinition, d.ID)
	case d.MetricKind.IsManual() && d.AutoEvaluate:
		return fmt.Errorf("%w: %s: manual achievements cannot auto-evaluate", ErrInvalidDefinition, d.ID)
	}
	return nil
}

// =============================================================================
// UNLOCK - One row per (user, achievement), forever
// =============================================================================

// Unlock records that a user earned an achievement. Its existence is the
// only unlock indicator; no "locked" row is ever written.
type Unlock struct {
	UserID         UserID
	AchievementID  AchievementID
	OrganizationID OrganizationID
	Progress       int64
	UnlockedAt     time.Time
}

// =============================================================================
// LEDGER ENTRY - Gems history
// =============================================================================

// SourceAchievement is the ledger source type for achievement rewards.
const SourceAchievement = "achievement"

// LedgerEntry is an append-only audit record of a gem credit.
type LedgerEntry struct {
	ID             string
	UserID         UserID
	OrganizationID OrganizationID
	SourceType     string
	SourceID       string
	Amount         int64
	Description    string
	CreatedAt      time.Time
}

// =============================================================================
// UNLOCK RESULT - Returned to the caller
// =============================================================================

// UnlockResult describes an achievement newly unlocked during one pass.
type UnlockResult struct {
	AchievementID AchievementID
	Name          string
	RewardPoints  int64
	MetricKind    MetricKind
}

func resultFor(d Definition) UnlockResult {
	return UnlockResult{
		AchievementID: d.ID,
		Name:          d.Name,
		RewardPoints:  d.RewardPoints,
		MetricKind:    d.MetricKind,
	}
}
