package statistics

import (
	"context"
	"fmt"

	"github.com/fitmatch/insights/pkg/fitness"
)

func (s *Service) systemAnalytics(ctx context.Context, w fitness.Window) (*SystemAnalytics, error) {
	report := newSystemAnalytics()

	for _, e := range fitness.Entities {
		total, err := s.store.CountEntities(ctx, e, fitness.AllTime())
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", e, err)
		}
		inRange := total
		if !w.IsAllTime() {
			if inRange, err = s.store.CountEntities(ctx, e, w); err != nil {
				return nil, fmt.Errorf("failed to count %s in range: %w", e, err)
			}
		}
		report.Entities = append(report.Entities, EntityCount{Entity: string(e), Total: total, InRange: inRange})
		report.TotalRecords += total
	}

	users, err := s.store.Users(ctx, fitness.PopulationAll)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	roles := make(map[string]int64)
	for _, u := range users {
		role := string(u.Role)
		if u.Role.IsClient() {
			role = string(fitness.RoleClient)
		}
		roles[role]++
	}
	report.UsersByRole = labeledCounts(roles, int64(len(users)))
	return report, nil
}
