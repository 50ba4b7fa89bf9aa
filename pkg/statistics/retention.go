package statistics

import (
	"context"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// Standard retention lookbacks
const (
	RetentionWeek  = 7
	RetentionMonth = 30
)

// retention returns the share of the cohort active during the lookback.
// The cohort is every client registered on or before today-lookbackDays.
// The activity window runs from that cutoff through today, both inclusive,
// so activity on the cutoff day itself counts as retained.
func (s *Service) retention(ctx context.Context, clients []fitness.User, lookbackDays int, today time.Time) (float64, error) {
	cutoff := today.AddDate(0, 0, -lookbackDays)

	cohort := make(UserSet)
	for _, u := range clients {
		if !fitness.StartOfDay(u.CreatedAt).After(cutoff) {
			cohort.Add(u.ID)
		}
	}
	if len(cohort) == 0 {
		return 0, nil
	}

	retained, err := s.activity.ResolveActiveUsers(ctx, fitness.DayWindow(cutoff, today), fitness.PopulationClients, cohort)
	if err != nil {
		return 0, err
	}
	return percentOf(int64(len(retained)), int64(len(cohort))), nil
}
