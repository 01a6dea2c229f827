/*
evaluator.go - Trigger evaluation pass

PURPOSE:
  One call evaluates one user in one organization and unlocks every
  achievement whose threshold is met. Callers invoke it after any action
  that might move a metric (task completed, check-in, message sent).

ALGORITHM:
  1. Load active auto-evaluate definitions for the organization
  2. Skip definitions the user already unlocked (before any metric work)
  3. Resolve the metric through the registry (unknown kinds are inert)
  4. Unlock when metric >= threshold
  5. Unlock atomically: row + gem credit + ledger entry, one tx per achievement
  6. Continue with the next candidate
  7. Return what was unlocked

FAILURE SEMANTICS:
  Nothing is returned to the caller as an error. A lost uniqueness race is
  a success without a duplicate. A metric or persistence failure skips that
  candidate for this pass; its transaction rolled back, so the next trigger
  retries it cleanly. The legacy badge mirror runs after commit and can
  never undo or block the unlock.

STATE MACHINE (per user, per achievement):
  Locked -> Unlocked. No other transition.
*/
package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachwise/achievement-engine/logging"
)

// Evaluator runs trigger evaluation passes. It holds no per-user state and
// is safe for concurrent use.
type Evaluator struct {
	Store   TxStore
	Metrics *MetricRegistry
	Mirror  BadgeMirror // optional
	Log     *logging.Logger

	Now   func() time.Time
	NewID func() string
}

// NewEvaluator creates an evaluator with a UTC clock and uuid ledger ids.
func NewEvaluator(store TxStore, metrics *MetricRegistry, log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.Nop()
	}
	return &Evaluator{
		Store:   store,
		Metrics: metrics,
		Log:     log,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Outcome is what happened to one candidate during a pass.
type Outcome string

const (
	OutcomeUnlocked        Outcome = "unlocked"
	OutcomeAlreadyUnlocked Outcome = "already_unlocked"
	OutcomeBelowThreshold  Outcome = "below_threshold"
	OutcomeInert           Outcome = "inert"
	OutcomeRaceLost        Outcome = "race_lost"
	OutcomeFailed          Outcome = "failed"
)

// PassReport summarizes one evaluation pass.
type PassReport struct {
	UserID         UserID
	OrganizationID OrganizationID
	Unlocked       []UnlockResult
	Outcomes       map[AchievementID]Outcome
	Failures       []error
}

func (r *PassReport) count(o Outcome) int {
	n := 0
	for _, v := range r.Outcomes {
		if v == o {
			n++
		}
	}
	return n
}

// EvaluateAchievements returns the achievements newly unlocked by this call.
// An empty slice is the normal outcome.
func (e *Evaluator) EvaluateAchievements(ctx context.Context, userID UserID, orgID OrganizationID) []UnlockResult {
	return e.Evaluate(ctx, userID, orgID).Unlocked
}

// Evaluate runs one pass and returns the full report.
func (e *Evaluator) Evaluate(ctx context.Context, userID UserID, orgID OrganizationID) *PassReport {
	log := e.Log.With("user_id", userID, "organization_id", orgID)
	report := &PassReport{
		UserID:         userID,
		OrganizationID: orgID,
		Unlocked:       []UnlockResult{},
		Outcomes:       make(map[AchievementID]Outcome),
	}

	defs, err := e.Store.ListActiveAutoEvaluateDefinitions(ctx, orgID)
	if err != nil {
		log.Error("load achievement catalog", "error", err)
		report.Failures = append(report.Failures, fmt.Errorf("load catalog: %w", err))
		return report
	}

	metrics := newMetricCache(e.Metrics, userID, orgID)
	for _, def := range defs {
		// The catalog contract already filters these; a misbehaving store
		// must still never leak manual or foreign definitions into a pass.
		if !def.Evaluable() || def.OrganizationID != orgID {
			continue
		}

		outcome, err := e.evaluateOne(ctx, log, metrics, userID, orgID, def)
		report.Outcomes[def.ID] = outcome
		switch outcome {
		case OutcomeUnlocked:
			report.Unlocked = append(report.Unlocked, resultFor(def))
		case OutcomeFailed:
			log.Warn("achievement candidate skipped", "achievement_id", def.ID, "error", err)
			report.Failures = append(report.Failures, err)
		}
	}

	log.Debug("achievement pass complete",
		"candidates", len(report.Outcomes),
		"unlocked", len(report.Unlocked),
		"already_unlocked", report.count(OutcomeAlreadyUnlocked),
		"races_lost", report.count(OutcomeRaceLost),
		"failed", len(report.Failures),
	)
	return report
}

func (e *Evaluator) evaluateOne(ctx context.Context, log *logging.Logger, metrics *metricCache, userID UserID, orgID OrganizationID, def Definition) (Outcome, error) {
	exists, err := e.Store.HasUnlock(ctx, userID, orgID, def.ID)
	if err != nil {
		return OutcomeFailed, &PersistenceError{AchievementID: def.ID, Err: fmt.Errorf("check existing unlock: %w", err)}
	}
	if exists {
		return OutcomeAlreadyUnlocked, nil
	}

	value, err := metrics.get(ctx, def.MetricKind)
	if errors.Is(err, ErrUnknownMetricKind) {
		return OutcomeInert, nil
	}
	if err != nil {
		return OutcomeFailed, &MetricResolutionError{AchievementID: def.ID, MetricKind: def.MetricKind, Err: err}
	}
	if !def.Satisfied(value) {
		return OutcomeBelowThreshold, nil
	}

	unlock := Unlock{
		UserID:         userID,
		AchievementID:  def.ID,
		OrganizationID: orgID,
		Progress:       def.CappedProgress(value),
		UnlockedAt:     e.Now(),
	}
	err = e.Store.WithTx(ctx, func(w UnlockWriter) error {
		return e.writeUnlock(ctx, w, def, unlock)
	})
	if errors.Is(err, ErrAlreadyUnlocked) {
		// A concurrent pass committed first. Confirm before calling it done.
		exists, verr := e.Store.HasUnlock(ctx, userID, orgID, def.ID)
		if verr == nil && exists {
			log.Debug("achievement unlock race lost", "achievement_id", def.ID)
			return OutcomeRaceLost, nil
		}
		if verr == nil {
			verr = errors.New("conflict reported but no unlock row found")
		}
		return OutcomeFailed, &PersistenceError{AchievementID: def.ID, Err: errors.Join(err, verr)}
	}
	if err != nil {
		return OutcomeFailed, &PersistenceError{AchievementID: def.ID, Err: err}
	}

	log.Info("achievement unlocked",
		"achievement_id", def.ID,
		"metric_kind", def.MetricKind,
		"metric_value", value,
		"reward_points", def.RewardPoints,
	)
	e.mirror(ctx, log, def, unlock)
	return OutcomeUnlocked, nil
}

// writeUnlock performs the writes of one unlock inside a transaction.
func (e *Evaluator) writeUnlock(ctx context.Context, w UnlockWriter, def Definition, u Unlock) error {
	if err := w.InsertUnlock(ctx, u); err != nil {
		return err
	}
	if def.RewardPoints <= 0 {
		return nil
	}
	if err := w.CreditCurrency(ctx, u.UserID, u.OrganizationID, def.RewardPoints); err != nil {
		return fmt.Errorf("credit gems: %w", err)
	}
	entry := LedgerEntry{
		ID:             e.NewID(),
		UserID:         u.UserID,
		OrganizationID: u.OrganizationID,
		SourceType:     SourceAchievement,
		SourceID:       string(def.ID),
		Amount:         def.RewardPoints,
		Description:    fmt.Sprintf("Achievement unlocked: %s", def.Name),
		CreatedAt:      u.UnlockedAt,
	}
	if err := w.AppendLedger(ctx, entry); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// mirror writes the legacy badge copy. Errors and panics are swallowed.
func (e *Evaluator) mirror(ctx context.Context, log *logging.Logger, def Definition, u Unlock) {
	if e.Mirror == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("legacy badge mirror panicked", "achievement_id", def.ID, "panic", r)
		}
	}()
	if err := e.Mirror.MirrorUnlock(ctx, def, u); err != nil {
		log.Warn("legacy badge mirror failed", "achievement_id", def.ID, "error", err)
	}
}
