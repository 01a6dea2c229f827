package achievement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinition_Satisfied(t *testing.T) {
	d := Definition{Threshold: 10}

	assert.False(t, d.Satisfied(9))
	assert.True(t, d.Satisfied(10))
	assert.True(t, d.Satisfied(11))

	zero := Definition{Threshold: 0}
	assert.True(t, zero.Satisfied(0), "threshold 0 is met immediately")
}

func TestDefinition_CappedProgress(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		in   int64
		want int64
	}{
		{"below threshold", Definition{Threshold: 10}, 4, 4},
		{"defaults to threshold", Definition{Threshold: 10}, 25, 10},
		{"explicit max", Definition{Threshold: 10, MaxProgress: 20}, 25, 20},
		{"negative clamps to zero", Definition{Threshold: 10}, -3, 0},
		{"zero threshold caps at one", Definition{}, 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.CappedProgress(tt.in))
		})
	}
}

func TestDefinition_Validate(t *testing.T) {
	valid := Definition{ID: "a", OrganizationID: "o", MetricKind: MetricTasksCompleted, Threshold: 1}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing id", func(d *Definition) { d.ID = "" }},
		{"missing organization", func(d *Definition) { d.OrganizationID = "" }},
		{"missing metric", func(d *Definition) { d.MetricKind = "" }},
		{"negative reward", func(d *Definition) { d.RewardPoints = -1 }},
		{"negative threshold", func(d *Definition) { d.Threshold = -1 }},
		{"manual auto-evaluate", func(d *Definition) { d.MetricKind = MetricManual; d.AutoEvaluate = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrInvalidDefinition)
		})
	}
}

func TestDefinition_Evaluable(t *testing.T) {
	d := Definition{Active: true, AutoEvaluate: true, MetricKind: MetricCheckinStreak}
	assert.True(t, d.Evaluable())

	d.Active = false
	assert.False(t, d.Evaluable())

	manual := Definition{Active: true, AutoEvaluate: true, MetricKind: MetricManual}
	assert.False(t, manual.Evaluable())
}

func TestStructuredErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	mErr := &MetricResolutionError{AchievementID: "a", MetricKind: MetricMessagesSent, Err: cause}
	assert.ErrorIs(t, mErr, ErrMetricResolution)
	assert.ErrorIs(t, mErr, cause)

	pErr := &PersistenceError{AchievementID: "a", Err: cause}
	assert.ErrorIs(t, pErr, ErrPersistence)
	assert.ErrorIs(t, pErr, cause)
}
