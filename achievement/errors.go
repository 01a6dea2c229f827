/*
errors.go - Error types for the achievement engine

ERROR CATEGORIES:
  1. Conflict      - ErrAlreadyUnlocked (recovered locally, never surfaced)
  2. Metric        - MetricResolutionError (candidate skipped for this pass)
  3. Persistence   - PersistenceError (candidate skipped for this pass)
  4. Catalog       - ErrInvalidDefinition (rejected at seed/parse time)

UNKNOWN METRIC KINDS:
  Not an error. A definition whose kind has no resolver is inert.
  ErrUnknownMetricKind exists only so Lookup callers can report it.

USAGE:
  if errors.Is(err, achievement.ErrAlreadyUnlocked) {
      // a concurrent pass won the race, nothing to do
  }
*/
package achievement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyUnlocked is returned by stores when the (user, achievement)
	// uniqueness constraint rejects an insert.
	ErrAlreadyUnlocked = errors.New("achievement already unlocked")

	// ErrUnknownMetricKind is returned when no resolver is registered for a kind.
	ErrUnknownMetricKind = errors.New("unknown metric kind")

	// ErrInvalidDefinition is returned when a catalog entry violates an invariant.
	ErrInvalidDefinition = errors.New("invalid achievement definition")

	// ErrMetricResolution wraps failures reading a metric value.
	ErrMetricResolution = errors.New("metric resolution failed")

	// ErrPersistence wraps failures writing an unlock.
	ErrPersistence = errors.New("unlock persistence failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry candidate context
// =============================================================================

// MetricResolutionError records a failed metric lookup for one candidate.
type MetricResolutionError struct {
	AchievementID AchievementID
	MetricKind    MetricKind
	Err           error
}

func (e *MetricResolutionError) Error() string {
	return fmt.Sprintf("resolve %s for %s: %v", e.MetricKind, e.AchievementID, e.Err)
}

func (e *MetricResolutionError) Unwrap() []error {
	return []error{ErrMetricResolution, e.Err}
}

// PersistenceError records a failed unlock write for one candidate.
type PersistenceError struct {
	AchievementID AchievementID
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unlock %s: %v", e.AchievementID, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
