package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

const topUsageLimit = 10

func (s *Service) behaviorAnalytics(ctx context.Context, w fitness.Window) (*BehaviorAnalytics, error) {
	report := newBehaviorAnalytics()

	events, err := s.store.AppUsage(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load app usage: %w", err)
	}

	features := make(map[string]int64)
	actions := make(map[string]int64)
	var hours [24]int64
	byWeekday := make(map[time.Weekday]int64)
	for _, e := range events {
		report.TotalEvents++
		features[labelOr(e.Feature)]++
		actions[labelOr(e.Action)]++
		at := e.OccurredAt.UTC()
		hours[at.Hour()]++
		byWeekday[at.Weekday()]++
	}
	report.TopFeatures = topN(labeledCounts(features, report.TotalEvents), topUsageLimit)
	report.TopActions = topN(labeledCounts(actions, report.TotalEvents), topUsageLimit)
	report.WeekdayDistribution = weekdaySeries(byWeekday, report.TotalEvents)
	report.HourlyDistribution = make([]HourCount, 0, len(hours))
	for h, n := range hours {
		report.HourlyDistribution = append(report.HourlyDistribution, HourCount{Hour: h, Count: n})
	}

	// Engagement is measured on the union of all activity sources, not just
	// the app usage log.
	days, err := s.activity.ActiveDays(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, err
	}
	report.ActiveUsers = int64(len(days))
	report.EventsPerUser = average(float64(report.TotalEvents), report.ActiveUsers)

	var activeDays, streaks float64
	for _, list := range days {
		activeDays += float64(len(list))
		streak := longestStreak(list)
		streaks += float64(streak)
		if streak > report.LongestStreakDays {
			report.LongestStreakDays = streak
		}
	}
	report.AverageActiveDays = average(activeDays, report.ActiveUsers)
	report.AverageStreakDays = average(streaks, report.ActiveUsers)

	bySource, err := s.activity.ActiveBySource(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, err
	}
	for _, src := range fitness.ActivitySources {
		n := int64(len(bySource[src]))
		report.SourceBreakdown = append(report.SourceBreakdown, LabeledCount{
			Label:      string(src),
			Count:      n,
			Percentage: percentOf(n, report.ActiveUsers),
		})
	}
	return report, nil
}
