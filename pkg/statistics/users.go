package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

const trailingTrendDays = 30

// trendWindow is the range used for day-level series. All-time reports fall
// back to the trailing 30 days so the series stays readable.
func trendWindow(w fitness.Window, today time.Time) fitness.Window {
	if w.IsAllTime() {
		return fitness.DayWindow(today.AddDate(0, 0, -(trailingTrendDays-1)), today)
	}
	return w
}

// monthlyWindow is the range used for month-level series. All-time reports
// fall back to the trailing twelve calendar months.
func monthlyWindow(w fitness.Window, today time.Time) fitness.Window {
	if w.IsAllTime() {
		return fitness.DayWindow(fitness.StartOfMonth(today).AddDate(0, -11, 0), today)
	}
	return w
}

func (s *Service) userAnalytics(ctx context.Context, w fitness.Window) (*UserAnalytics, error) {
	today := s.today()
	report := newUserAnalytics()

	clients, err := s.store.Users(ctx, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	report.TotalUsers = int64(len(clients))

	trend := trendWindow(w, today)
	registrations := make(map[string]int64)
	genders := make(map[string]int64)
	for _, u := range clients {
		if w.Contains(u.CreatedAt) {
			report.NewRegistrationsInRange++
		}
		if trend.Contains(u.CreatedAt) {
			registrations[dayKey(u.CreatedAt)]++
		}
		genders[normalizeGender(u.Gender)]++
		report.AgeDistribution.add(u.BirthDate, today)
	}
	report.RegistrationTrend = countSeries(registrations)
	report.GenderDistribution = labeledCounts(genders, report.TotalUsers)

	active, err := s.activity.ResolveActiveUsers(ctx, w, fitness.PopulationClients, nil)
	if err != nil {
		return nil, err
	}
	report.ActiveUsersInRange = int64(len(active))

	if err := s.activeUserSeries(ctx, report, trend, monthlyWindow(w, today)); err != nil {
		return nil, err
	}

	memberships, err := s.store.Memberships(ctx, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	byUser := make(map[string][]fitness.Membership)
	premium := make(UserSet)
	for _, m := range memberships {
		byUser[m.UserID] = append(byUser[m.UserID], m)
		if m.ActiveOn(today) {
			premium.Add(m.UserID)
		}
	}
	report.PremiumUsers = int64(len(premium))

	lastActive, err := s.activity.LastActivity(ctx, fitness.PopulationClients)
	if err != nil {
		return nil, err
	}
	for _, u := range clients {
		last, ok := lastActive[u.ID]
		sig := collectSignals(u, byUser[u.ID], last, ok, today)
		report.AccountStatus.add(classifyAccount(sig, s.lockedRule))
	}

	if report.Retention7Day, err = s.retention(ctx, clients, RetentionWeek, today); err != nil {
		return nil, err
	}
	if report.Retention30Day, err = s.retention(ctx, clients, RetentionMonth, today); err != nil {
		return nil, err
	}
	return report, nil
}

// activeUserSeries fills the daily and monthly active user series
func (s *Service) activeUserSeries(ctx context.Context, report *UserAnalytics, daily, monthly fitness.Window) error {
	// The monthly window always covers the daily one.
	days, err := s.activity.ActiveDays(ctx, monthly, fitness.PopulationClients)
	if err != nil {
		return err
	}

	dau := make(map[string]int64)
	mau := make(map[string]UserSet)
	for id, list := range days {
		for _, d := range list {
			if daily.Contains(d) {
				dau[dayKey(d)]++
			}
			if monthly.Contains(d) {
				key := monthKey(d)
				if mau[key] == nil {
					mau[key] = make(UserSet)
				}
				mau[key].Add(id)
			}
		}
	}

	monthlyCounts := make(map[string]int64, len(mau))
	for month, set := range mau {
		monthlyCounts[month] = int64(len(set))
	}
	report.DailyActiveUsers = countSeries(dau)
	report.MonthlyActiveUsers = countSeries(monthlyCounts)
	return nil
}
