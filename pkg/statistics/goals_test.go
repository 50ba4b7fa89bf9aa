package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fitmatch/insights/pkg/fitness"
)

func TestGoalState(t *testing.T) {
	today := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name     string
		goal     fitness.Goal
		expected GoalState
	}{
		{"completed", fitness.Goal{StartDate: start, Completed: true, EndDate: &yesterday}, GoalCompleted},
		{"open ended", fitness.Goal{StartDate: start}, GoalInProgress},
		{"ends today", fitness.Goal{StartDate: start, EndDate: &today}, GoalInProgress},
		{"ended yesterday", fitness.Goal{StartDate: start, EndDate: &yesterday}, GoalCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, goalState(tt.goal, today))
		})
	}
}

func TestGoalDays(t *testing.T) {
	today := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	future := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	days, ok := goalDays(fitness.Goal{StartDate: start}, GoalInProgress, today)
	assert.True(t, ok)
	assert.Equal(t, 9.0, days)

	days, ok = goalDays(fitness.Goal{StartDate: start, EndDate: &end, Completed: true}, GoalCompleted, today)
	assert.True(t, ok)
	assert.Equal(t, 4.0, days)

	_, ok = goalDays(fitness.Goal{StartDate: future}, GoalInProgress, today)
	assert.False(t, ok, "goals starting in the future are not counted")

	_, ok = goalDays(fitness.Goal{StartDate: start, EndDate: &end}, GoalCancelled, today)
	assert.False(t, ok)
}
