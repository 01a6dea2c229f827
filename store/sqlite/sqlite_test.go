package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	user achievement.UserID         = "user-1"
	org  achievement.OrganizationID = "org-1"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveDef(t *testing.T, store *sqlite.Store, d achievement.Definition) {
	t.Helper()
	require.NoError(t, store.SaveDefinition(context.Background(), d))
}

func tasksDef(id string, threshold, reward int64) achievement.Definition {
	return achievement.Definition{
		ID:             achievement.AchievementID(id),
		OrganizationID: org,
		Name:           "Tasks " + id,
		RewardPoints:   reward,
		MetricKind:     achievement.MetricTasksCompleted,
		Threshold:      threshold,
		Active:         true,
		AutoEvaluate:   true,
	}
}

func completeTasks(t *testing.T, store *sqlite.Store, u achievement.UserID, o achievement.OrganizationID, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, store.SaveTask(context.Background(), sqlite.Task{
			UserID: u, OrganizationID: o, Title: fmt.Sprintf("task %d", i),
			Status: sqlite.TaskStatusCompleted, CompletedAt: &now,
		}))
	}
}

func newEvaluator(store *sqlite.Store) *achievement.Evaluator {
	ev := achievement.NewEvaluator(store, achievement.DefaultMetrics(store), nil)
	ev.Mirror = store
	return ev
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_FiltersAndOrders(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	b := tasksDef("b", 5, 10)
	b.SortOrder = 2
	a := tasksDef("a", 1, 10)
	a.SortOrder = 1
	inactive := tasksDef("inactive", 1, 10)
	inactive.Active = false
	manual := achievement.Definition{ID: "coach-pick", OrganizationID: org, Name: "Coach",
		MetricKind: achievement.MetricManual, Active: true, SortOrder: 3}
	foreign := tasksDef("a", 1, 10)
	foreign.OrganizationID = "org-2"

	for _, d := range []achievement.Definition{b, a, inactive, manual, foreign} {
		saveDef(t, store, d)
	}

	candidates, err := store.ListActiveAutoEvaluateDefinitions(ctx, org)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, achievement.AchievementID("a"), candidates[0].ID)
	assert.Equal(t, achievement.AchievementID("b"), candidates[1].ID)
	assert.Equal(t, int64(5), candidates[1].MaxProgress, "max progress defaults to threshold")

	all, err := store.ListDefinitions(ctx, org)
	require.NoError(t, err)
	assert.Len(t, all, 3, "manual shows on the screen, inactive does not")
}

func TestSaveDefinition_Upserts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveDef(t, store, tasksDef("a", 1, 10))
	updated := tasksDef("a", 3, 25)
	updated.Name = "Renamed"
	saveDef(t, store, updated)

	defs, err := store.ListDefinitions(ctx, org)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Renamed", defs[0].Name)
	assert.Equal(t, int64(25), defs[0].RewardPoints)
}

func TestSaveDefinition_RejectsManualAutoEvaluate(t *testing.T) {
	store := newStore(t)
	bad := achievement.Definition{ID: "x", OrganizationID: org, MetricKind: achievement.MetricManual,
		Active: true, AutoEvaluate: true}

	err := store.SaveDefinition(context.Background(), bad)

	assert.ErrorIs(t, err, achievement.ErrInvalidDefinition)
}

// =============================================================================
// UNLOCK WRITES
// =============================================================================

func TestInsertUnlock_DuplicateReturnsErrAlreadyUnlocked(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	u := achievement.Unlock{UserID: user, OrganizationID: org, AchievementID: "a", Progress: 1, UnlockedAt: time.Now()}

	require.NoError(t, store.WithTx(ctx, func(w achievement.UnlockWriter) error {
		return w.InsertUnlock(ctx, u)
	}))
	err := store.WithTx(ctx, func(w achievement.UnlockWriter) error {
		return w.InsertUnlock(ctx, u)
	})

	assert.ErrorIs(t, err, achievement.ErrAlreadyUnlocked)

	// Same achievement id in another organization is a different unlock.
	other := u
	other.OrganizationID = "org-2"
	assert.NoError(t, store.WithTx(ctx, func(w achievement.UnlockWriter) error {
		return w.InsertUnlock(ctx, other)
	}))
}

func TestWithTx_RollsBackAllWrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(w achievement.UnlockWriter) error {
		u := achievement.Unlock{UserID: user, OrganizationID: org, AchievementID: "a", UnlockedAt: time.Now()}
		if err := w.InsertUnlock(ctx, u); err != nil {
			return err
		}
		if err := w.CreditCurrency(ctx, user, org, 50); err != nil {
			return err
		}
		return errors.New("ledger write failed")
	})
	require.Error(t, err)

	has, err := store.HasUnlock(ctx, user, org, "a")
	require.NoError(t, err)
	assert.False(t, has)
	gems, err := store.CurrencyTotal(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gems)
}

func TestCreditCurrency_Increments(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, amount := range []int64{10, 15} {
		require.NoError(t, store.WithTx(ctx, func(w achievement.UnlockWriter) error {
			return w.CreditCurrency(ctx, user, org, amount)
		}))
	}

	gems, err := store.CurrencyTotal(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(25), gems)
}

// =============================================================================
// EVALUATION ON SQLITE
// =============================================================================

func TestEvaluate_EndToEnd(t *testing.T) {
	// GIVEN: 12 completed tasks; A1 at 10 (50 gems), A2 at 20
	store := newStore(t)
	ctx := context.Background()
	saveDef(t, store, tasksDef("A1", 10, 50))
	saveDef(t, store, tasksDef("A2", 20, 75))
	completeTasks(t, store, user, org, 12)
	ev := newEvaluator(store)

	// WHEN
	results := ev.EvaluateAchievements(ctx, user, org)

	// THEN
	require.Len(t, results, 1)
	assert.Equal(t, achievement.AchievementID("A1"), results[0].AchievementID)

	gems, err := store.CurrencyTotal(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(50), gems)

	entries, err := store.LedgerEntries(ctx, user, org)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A1", entries[0].SourceID)
	assert.Equal(t, achievement.SourceAchievement, entries[0].SourceType)
	assert.Equal(t, int64(50), entries[0].Amount)
	assert.Equal(t, "Achievement unlocked: Tasks A1", entries[0].Description)

	unlocks, err := store.ListUnlocks(ctx, user, org)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, int64(10), unlocks[0].Progress)

	badges, err := store.CountBadges(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, badges)

	// AND: A second call changes nothing
	assert.Empty(t, ev.EvaluateAchievements(ctx, user, org))
	entries, err = store.LedgerEntries(ctx, user, org)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec, err := achievement.Reconcile(ctx, store, user, org)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
}

func TestEvaluate_ConcurrentPasses_SingleUnlock(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDef(t, store, tasksDef("A1", 10, 50))
	completeTasks(t, store, user, org, 10)
	ev := newEvaluator(store)

	var unlocked atomic.Int64
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			report := ev.Evaluate(ctx, user, org)
			if len(report.Failures) > 0 {
				return errors.Join(report.Failures...)
			}
			unlocked.Add(int64(len(report.Unlocked)))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), unlocked.Load())
	entries, err := store.LedgerEntries(ctx, user, org)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	gems, err := store.CurrencyTotal(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(50), gems)
}

func TestEvaluate_MessagesAreScopedByOrganization(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDef(t, store, achievement.Definition{
		ID: "first-message", OrganizationID: org, Name: "Hello", RewardPoints: 5,
		MetricKind: achievement.MetricMessagesSent, Threshold: 1, Active: true, AutoEvaluate: true,
	})
	require.NoError(t, store.SaveMessage(ctx, sqlite.Message{UserID: user, OrganizationID: "org-2", Body: "hi"}))
	ev := newEvaluator(store)

	assert.Empty(t, ev.EvaluateAchievements(ctx, user, org))

	require.NoError(t, store.SaveMessage(ctx, sqlite.Message{UserID: user, OrganizationID: org, Body: "hi"}))
	assert.Len(t, ev.EvaluateAchievements(ctx, user, org), 1)
}

// =============================================================================
// METRIC SOURCES
// =============================================================================

func TestCompletedTaskCount_OnlyCompleted(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	completeTasks(t, store, user, org, 3)
	require.NoError(t, store.SaveTask(ctx, sqlite.Task{UserID: user, OrganizationID: org, Title: "open"}))

	n, err := store.CompletedTaskCount(ctx, user, org)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRecordCheckin_Streaks(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	steps := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"first check-in", day, 1},
		{"next day", day.AddDate(0, 0, 1), 2},
		{"same day again", day.AddDate(0, 0, 1).Add(5 * time.Hour), 2},
		{"third day", day.AddDate(0, 0, 2), 3},
		{"earlier day ignored", day, 3},
		{"gap resets", day.AddDate(0, 0, 5), 1},
	}
	for _, s := range steps {
		got, err := store.RecordCheckin(ctx, user, org, s.at)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.want, got, s.name)
	}

	streak, err := store.CheckinStreak(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(1), streak)
}

func TestRecordCheckin_KeepsGems(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.AwardGems(ctx, achievement.LedgerEntry{
		UserID: user, OrganizationID: org, SourceType: "activity", Amount: 30,
	}))

	_, err := store.RecordCheckin(ctx, user, org, time.Now())
	require.NoError(t, err)

	gems, err := store.CurrencyTotal(ctx, user, org)
	require.NoError(t, err)
	assert.Equal(t, int64(30), gems)
	rec, err := achievement.Reconcile(ctx, store, user, org)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(0), rec.AchievementTotal)
}

// =============================================================================
// MIRROR / RESET
// =============================================================================

func TestMirrorUnlock_IsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	def := tasksDef("A1", 1, 0)
	u := achievement.Unlock{UserID: user, OrganizationID: org, AchievementID: "A1", UnlockedAt: time.Now()}

	require.NoError(t, store.MirrorUnlock(ctx, def, u))
	require.NoError(t, store.MirrorUnlock(ctx, def, u))

	n, err := store.CountBadges(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReset_ClearsEverything(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDef(t, store, tasksDef("A1", 1, 10))
	completeTasks(t, store, user, org, 1)
	require.Len(t, newEvaluator(store).EvaluateAchievements(ctx, user, org), 1)

	require.NoError(t, store.Reset(ctx))

	defs, err := store.ListDefinitions(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, defs)
	unlocks, err := store.ListUnlocks(ctx, user, org)
	require.NoError(t, err)
	assert.Empty(t, unlocks)
	n, err := store.CompletedTaskCount(ctx, user, org)
	require.NoError(t, err)
	assert.Zero(t, n)
}
