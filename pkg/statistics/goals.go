package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// GoalState is the lifecycle bucket of a goal on a given day
type GoalState string

const (
	GoalCompleted  GoalState = "Completed"
	GoalInProgress GoalState = "InProgress"
	GoalCancelled  GoalState = "Cancelled"
)

// goalState classifies g as of today. An unfinished goal past its end date
// is considered cancelled.
func goalState(g fitness.Goal, today time.Time) GoalState {
	switch {
	case g.Completed:
		return GoalCompleted
	case g.EndDate == nil || !fitness.StartOfDay(*g.EndDate).Before(today):
		return GoalInProgress
	default:
		return GoalCancelled
	}
}

// goalDays returns the days a goal has run: end-start for completed goals
// and today-start for goals still in progress. ok is false for cancelled
// goals, completed goals without an end date, and negative spans.
func goalDays(g fitness.Goal, state GoalState, today time.Time) (days float64, ok bool) {
	start := fitness.StartOfDay(g.StartDate)
	var end time.Time
	switch state {
	case GoalCompleted:
		if g.EndDate == nil {
			return 0, false
		}
		end = fitness.StartOfDay(*g.EndDate)
	case GoalInProgress:
		end = today
	default:
		return 0, false
	}
	span := end.Sub(start).Hours() / 24
	if span < 0 {
		return 0, false
	}
	return span, true
}

func (s *Service) goalsAnalytics(ctx context.Context, w fitness.Window) (*GoalsAnalytics, error) {
	today := s.today()
	report := newGoalsAnalytics()

	goals, err := s.store.Goals(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}

	var durations, progress mean
	types := make(map[string]int64)
	created := make(map[string]int64)
	for _, g := range goals {
		report.TotalGoals++
		types[labelOr(g.GoalType)]++
		created[monthKey(g.StartDate)]++
		p := g.Progress
		progress.add(&p)

		state := goalState(g, today)
		switch state {
		case GoalCompleted:
			report.CompletedGoals++
		case GoalInProgress:
			report.InProgressGoals++
		case GoalCancelled:
			report.CancelledGoals++
		}
		if d, ok := goalDays(g, state, today); ok {
			durations.add(&d)
		}
	}

	report.CompletionRate = percentOf(report.CompletedGoals, report.TotalGoals)
	report.AverageCompletionDays = durations.value()
	report.AverageProgress = progress.value()
	report.GoalsByType = labeledCounts(types, report.TotalGoals)
	report.GoalTrend = countSeries(created)
	return report, nil
}
