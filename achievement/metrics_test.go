package achievement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/achievement/store"
)

func constant(v int64) achievement.MetricResolver {
	return achievement.MetricResolverFunc(func(context.Context, achievement.UserID, achievement.OrganizationID) (int64, error) {
		return v, nil
	})
}

func TestMetricRegistry_DefaultKinds(t *testing.T) {
	reg := achievement.DefaultMetrics(store.NewMemory())

	assert.Equal(t, []achievement.MetricKind{
		achievement.MetricCheckinStreak,
		achievement.MetricCurrencyEarned,
		achievement.MetricMessagesSent,
		achievement.MetricTasksCompleted,
	}, reg.Kinds())
}

func TestMetricRegistry_LookupUnknown(t *testing.T) {
	reg := achievement.NewMetricRegistry()

	_, err := reg.Lookup("sessions_booked")

	assert.ErrorIs(t, err, achievement.ErrUnknownMetricKind)
}

func TestMetricRegistry_RegisterReplaces(t *testing.T) {
	reg := achievement.NewMetricRegistry()
	reg.Register("sessions_booked", constant(1))
	reg.Register("sessions_booked", constant(7))

	res, err := reg.Lookup("sessions_booked")
	require.NoError(t, err)
	v, err := res.Resolve(context.Background(), "u", "o")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestMetricRegistry_ManualIsNeverRegistered(t *testing.T) {
	reg := achievement.NewMetricRegistry()
	reg.Register(achievement.MetricManual, constant(100))
	reg.Register("nil_resolver", nil)

	_, err := reg.Lookup(achievement.MetricManual)
	assert.ErrorIs(t, err, achievement.ErrUnknownMetricKind)
	assert.Empty(t, reg.Kinds())
}

func TestDefaultMetrics_ReadsScopedCounters(t *testing.T) {
	mem := store.NewMemory()
	mem.SetStats("u", "o", store.Stats{CompletedTasks: 3, CheckinStreak: 4, Gems: 5, MessagesSent: 6})
	mem.SetStats("u", "other", store.Stats{CompletedTasks: 99})
	reg := achievement.DefaultMetrics(mem)

	want := map[achievement.MetricKind]int64{
		achievement.MetricTasksCompleted: 3,
		achievement.MetricCheckinStreak:  4,
		achievement.MetricCurrencyEarned: 5,
		achievement.MetricMessagesSent:   6,
	}
	for kind, expected := range want {
		res, err := reg.Lookup(kind)
		require.NoError(t, err)
		v, err := res.Resolve(context.Background(), "u", "o")
		require.NoError(t, err)
		assert.Equal(t, expected, v, kind)
	}
}
