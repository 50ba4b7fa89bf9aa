package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

const topExercisesLimit = 5

func (s *Service) workoutAnalytics(ctx context.Context, w fitness.Window) (*WorkoutAnalytics, error) {
	report := newWorkoutAnalytics()

	logs, err := s.store.WorkoutLogs(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load workout logs: %w", err)
	}

	users := make(UserSet)
	exercises := make(map[string]*ExerciseSummary)
	daily := make(map[string]int64)
	byWeekday := make(map[time.Weekday]int64)
	for _, l := range logs {
		report.TotalLogs++
		if !l.Completed {
			continue
		}
		report.CompletedLogs++
		report.TotalMinutes += int64(l.DurationMinutes)
		report.TotalCaloriesBurned += l.CaloriesBurned
		users.Add(l.UserID)
		daily[dayKey(l.LogDate)]++
		byWeekday[l.LogDate.UTC().Weekday()]++

		name := labelOr(l.ExerciseName)
		ex, ok := exercises[name]
		if !ok {
			ex = &ExerciseSummary{Name: name}
			exercises[name] = ex
		}
		ex.Sessions++
		ex.TotalMinutes += int64(l.DurationMinutes)
		ex.CaloriesBurned += l.CaloriesBurned
	}

	report.CompletionRate = percentOf(report.CompletedLogs, report.TotalLogs)
	report.ActiveUsers = int64(len(users))
	report.AverageDurationMinutes = average(float64(report.TotalMinutes), report.CompletedLogs)
	report.AverageCaloriesBurned = average(report.TotalCaloriesBurned, report.CompletedLogs)
	report.TotalCaloriesBurned = round2(report.TotalCaloriesBurned)
	report.DailyTrend = countSeries(daily)
	report.WeekdayDistribution = weekdaySeries(byWeekday, report.CompletedLogs)

	top := make([]ExerciseSummary, 0, len(exercises))
	for _, ex := range exercises {
		ex.CaloriesBurned = round2(ex.CaloriesBurned)
		top = append(top, *ex)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Sessions != top[j].Sessions {
			return top[i].Sessions > top[j].Sessions
		}
		return top[i].Name < top[j].Name
	})
	report.TopExercises = topN(top, topExercisesLimit)
	return report, nil
}
