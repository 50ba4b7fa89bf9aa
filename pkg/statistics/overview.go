package statistics

import (
	"context"
	"fmt"

	"github.com/fitmatch/insights/pkg/fitness"
)

// periodCounts holds the headline counts of a single window
type periodCounts struct {
	newUsers    int64
	newTrainers int64
	revenue     float64
	activeUsers int64
}

func (s *Service) periodCounts(ctx context.Context, w fitness.Window) (periodCounts, error) {
	var pc periodCounts
	var err error

	if pc.newUsers, err = s.store.CountUsers(ctx, fitness.PopulationClients, w); err != nil {
		return pc, fmt.Errorf("failed to count new clients: %w", err)
	}
	if pc.newTrainers, err = s.store.CountUsers(ctx, fitness.PopulationTrainers, w); err != nil {
		return pc, fmt.Errorf("failed to count new trainers: %w", err)
	}
	if pc.revenue, err = s.store.CompletedRevenue(ctx, w); err != nil {
		return pc, fmt.Errorf("failed to sum revenue: %w", err)
	}

	active, err := s.activity.ResolveActiveUsers(ctx, w, fitness.PopulationClients, nil)
	if err != nil {
		return pc, err
	}
	pc.activeUsers = int64(len(active))
	return pc, nil
}

func (s *Service) overview(ctx context.Context, w fitness.Window) (*Overview, error) {
	cur, err := s.periodCounts(ctx, w)
	if err != nil {
		return nil, err
	}

	// The window before all time is empty, so all-time growth is always 0.
	var prev periodCounts
	if !w.IsAllTime() {
		if prev, err = s.periodCounts(ctx, w.Previous()); err != nil {
			return nil, err
		}
	}

	o := newOverview()
	o.NewUsers, o.PreviousNewUsers = cur.newUsers, prev.newUsers
	o.NewTrainers, o.PreviousNewTrainers = cur.newTrainers, prev.newTrainers
	o.Revenue, o.PreviousRevenue = round2(cur.revenue), round2(prev.revenue)
	o.ActiveUsers, o.PreviousActiveUsers = cur.activeUsers, prev.activeUsers

	o.NewUsersGrowth = growthPercent(float64(cur.newUsers), float64(prev.newUsers))
	o.NewTrainersGrowth = growthPercent(float64(cur.newTrainers), float64(prev.newTrainers))
	o.RevenueGrowth = growthPercent(cur.revenue, prev.revenue)
	o.ActiveUsersGrowth = growthPercent(float64(cur.activeUsers), float64(prev.activeUsers))

	if o.TotalUsers, err = s.store.CountUsers(ctx, fitness.PopulationClients, fitness.AllTime()); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}
	if o.TotalTrainers, err = s.store.CountUsers(ctx, fitness.PopulationTrainers, fitness.AllTime()); err != nil {
		return nil, fmt.Errorf("failed to count trainers: %w", err)
	}
	return o, nil
}
