package achievement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/achievement/store"
)

func TestProgressView_LockedUnlockedAndManual(t *testing.T) {
	// GIVEN: A1 unlocked at 12 tasks; A2 still locked; a manual award
	a1 := tasksDef("A1", 10, 50)
	a1.SortOrder = 1
	a2 := tasksDef("A2", 20, 75)
	a2.SortOrder = 2
	manual := achievement.Definition{
		ID: "coach-pick", OrganizationID: orgO, Name: "Coach", MetricKind: achievement.MetricManual,
		Active: true, SortOrder: 3,
	}
	ev, mem := newTestEvaluator(t, a2, manual, a1)
	mem.SetStats(userU, orgO, store.Stats{CompletedTasks: 12})
	ctx := context.Background()
	require.Len(t, ev.EvaluateAchievements(ctx, userU, orgO), 1)

	// Metric keeps moving after the unlock.
	mem.SetStats(userU, orgO, store.Stats{CompletedTasks: 25, Gems: 50})

	// WHEN
	rows, err := achievement.ProgressView(ctx, mem, mem, ev.Metrics, userU, orgO)
	require.NoError(t, err)

	// THEN: Ordered by sort order; unlocked rows keep their stored progress
	require.Len(t, rows, 3)
	assert.Equal(t, achievement.AchievementID("A1"), rows[0].Definition.ID)
	assert.True(t, rows[0].Unlocked)
	require.NotNil(t, rows[0].UnlockedAt)
	assert.Equal(t, int64(10), rows[0].Progress)

	assert.Equal(t, achievement.AchievementID("A2"), rows[1].Definition.ID)
	assert.False(t, rows[1].Unlocked)
	assert.Nil(t, rows[1].UnlockedAt)
	assert.Equal(t, int64(20), rows[1].Progress, "capped at max progress")
	assert.Equal(t, int64(20), rows[1].MaxProgress)

	assert.Equal(t, achievement.AchievementID("coach-pick"), rows[2].Definition.ID)
	assert.Equal(t, int64(0), rows[2].Progress)
}

func TestProgressView_IsReadOnly(t *testing.T) {
	ev, mem := newTestEvaluator(t, tasksDef("A1", 1, 50))
	mem.SetStats(userU, orgO, store.Stats{CompletedTasks: 5})
	ctx := context.Background()

	rows, err := achievement.ProgressView(ctx, mem, mem, ev.Metrics, userU, orgO)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Unlocked, "viewing progress never unlocks")

	has, err := mem.HasUnlock(ctx, userU, orgO, "A1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestProgressView_MetricFailureDegradesRow(t *testing.T) {
	ev, mem := newTestEvaluator(t, tasksDef("A1", 10, 50))
	ev.Metrics.Register(achievement.MetricTasksCompleted, achievement.MetricResolverFunc(
		func(context.Context, achievement.UserID, achievement.OrganizationID) (int64, error) {
			return 0, errors.New("timeout")
		},
	))

	rows, err := achievement.ProgressView(context.Background(), mem, mem, ev.Metrics, userU, orgO)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0].Progress)
}
