package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachwise/achievement-engine/achievement"
)

func TestParseCatalog_Defaults(t *testing.T) {
	f := NewCatalogFactory()

	defs, err := f.ParseCatalog(`[
		{"id": "tasks-10", "reward_points": 50, "metric": "tasks", "threshold": 10},
		{"id": "coach-pick", "name": "Coach's Pick", "metric": "manual", "threshold": 5}
	]`, "org-1")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	tasks := defs[0]
	assert.Equal(t, achievement.OrganizationID("org-1"), tasks.OrganizationID)
	assert.Equal(t, "tasks-10", tasks.Name, "name falls back to id")
	assert.Equal(t, achievement.MetricTasksCompleted, tasks.MetricKind)
	assert.True(t, tasks.Active)
	assert.True(t, tasks.AutoEvaluate)
	assert.Equal(t, int64(10), tasks.MaxProgress)

	manual := defs[1]
	assert.Equal(t, achievement.MetricManual, manual.MetricKind)
	assert.False(t, manual.AutoEvaluate, "manual entries never auto-evaluate")
	assert.Zero(t, manual.Threshold)
	assert.False(t, manual.Evaluable())
}

func TestParseCatalog_MetricAliases(t *testing.T) {
	tests := map[string]achievement.MetricKind{
		"streak":          achievement.MetricCheckinStreak,
		"check_in_streak": achievement.MetricCheckinStreak,
		"gems_earned":     achievement.MetricCurrencyEarned,
		"Messages":        achievement.MetricMessagesSent,
		"sessions_booked": "sessions_booked",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseMetricKind(in), in)
	}
}

func TestParseCatalog_Rejects(t *testing.T) {
	f := NewCatalogFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"id":`},
		{"duplicate id", `[{"id": "a", "metric": "tasks"}, {"id": "a", "metric": "tasks"}]`},
		{"missing id", `[{"metric": "tasks", "threshold": 1}]`},
		{"negative reward", `[{"id": "a", "metric": "tasks", "reward_points": -5}]`},
		{"missing metric", `[{"id": "a", "threshold": 1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseCatalog(tt.json, "org-1")
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTripsThroughFromJSON(t *testing.T) {
	f := NewCatalogFactory()
	defs, err := f.ParseCatalog(DefaultCatalogJSON(), "org-1")
	require.NoError(t, err)

	for _, d := range defs {
		back, err := f.FromJSON(f.ToJSON(d), "org-1")
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}

func TestDefaultCatalog_IsValid(t *testing.T) {
	defs, err := NewCatalogFactory().ParseCatalog(DefaultCatalogJSON(), "org-1")
	require.NoError(t, err)
	assert.Len(t, defs, 11)

	manual := 0
	for _, d := range defs {
		if d.MetricKind.IsManual() {
			manual++
			assert.False(t, d.AutoEvaluate)
		}
	}
	assert.Equal(t, 1, manual)
}
