// Package memory provides an in-memory statistics store loaded from a JSON
// fixture. It applies the same filters as the PostgreSQL store and is used
// for local demo mode and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// Dataset is the full set of platform rows held by a Store
type Dataset struct {
	Users         []fitness.User          `json:"users"`
	AppUsage      []fitness.AppUsageEvent `json:"app_usage"`
	HealthRecords []fitness.HealthRecord  `json:"health_records"`
	NutritionLogs []fitness.NutritionLog  `json:"nutrition_logs"`
	WorkoutLogs   []fitness.WorkoutLog    `json:"workout_logs"`
	Memberships   []fitness.Membership    `json:"memberships"`
	Trainers      []fitness.Trainer       `json:"trainers"`
	Bookings      []fitness.Booking       `json:"bookings"`
	Ratings       []fitness.Rating        `json:"ratings"`
	Transactions  []fitness.Transaction   `json:"transactions"`
	Goals         []fitness.Goal          `json:"goals"`
	Foods         []fitness.Food          `json:"foods"`
	Diseases      []fitness.Disease       `json:"diseases"`
}

// Store serves statistics queries from a Dataset. The dataset must not be
// modified after New.
type Store struct {
	data  Dataset
	roles map[string]fitness.Role
	names map[string]string
}

// New creates a store over data
func New(data Dataset) *Store {
	s := &Store{
		data:  data,
		roles: make(map[string]fitness.Role, len(data.Users)),
		names: make(map[string]string, len(data.Users)),
	}
	for _, u := range data.Users {
		s.roles[u.ID] = u.Role
		s.names[u.ID] = u.FullName
	}
	return s
}

// Load reads a JSON fixture from path
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var data Dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fixture: %w", err)
	}
	return New(data), nil
}

// admits reports whether a row owned by userID passes the population filter.
// Rows without a user id never pass. Rows of unknown users only pass when
// no role filter is requested.
func (s *Store) admits(userID string, pop fitness.Population) bool {
	if userID == "" {
		return false
	}
	if pop == fitness.PopulationAll {
		return true
	}
	role, ok := s.roles[userID]
	return ok && pop.Admits(role)
}

// activityEvents lists (user, day) for every event of src, unfiltered by time
func (s *Store) activityEvents(src fitness.ActivitySource) ([]fitness.UserDay, error) {
	var out []fitness.UserDay
	switch src {
	case fitness.SourceAppUsage:
		for _, e := range s.data.AppUsage {
			out = append(out, fitness.UserDay{UserID: e.UserID, Day: e.OccurredAt})
		}
	case fitness.SourceHealth:
		for _, r := range s.data.HealthRecords {
			out = append(out, fitness.UserDay{UserID: r.UserID, Day: r.RecordDate})
		}
	case fitness.SourceNutrition:
		for _, l := range s.data.NutritionLogs {
			out = append(out, fitness.UserDay{UserID: l.UserID, Day: l.LogDate})
		}
	case fitness.SourceWorkout:
		for _, l := range s.data.WorkoutLogs {
			if l.Completed {
				out = append(out, fitness.UserDay{UserID: l.UserID, Day: l.LogDate})
			}
		}
	default:
		return nil, fmt.Errorf("unknown activity source %q", src)
	}
	return out, nil
}

// inWindow applies the SQL window semantics: timestamps compare as
// instants, date-only sources by calendar day
func inWindow(src fitness.ActivitySource, t time.Time, w fitness.Window) bool {
	if src == fitness.SourceAppUsage {
		return w.Contains(t)
	}
	return w.ContainsDay(t)
}

// ActiveUserIDs implements statistics.ActivityReader
func (s *Store) ActiveUserIDs(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := s.activityEvents(src)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	ids := []string{}
	for _, e := range events {
		if !s.admits(e.UserID, pop) || !inWindow(src, e.Day, w) {
			continue
		}
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

// ActivityDays implements statistics.ActivityReader
func (s *Store) ActivityDays(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]fitness.UserDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := s.activityEvents(src)
	if err != nil {
		return nil, err
	}
	seen := make(map[fitness.UserDay]struct{})
	days := []fitness.UserDay{}
	for _, e := range events {
		if !s.admits(e.UserID, pop) || !inWindow(src, e.Day, w) {
			continue
		}
		ud := fitness.UserDay{UserID: e.UserID, Day: fitness.StartOfDay(e.Day)}
		if _, ok := seen[ud]; ok {
			continue
		}
		seen[ud] = struct{}{}
		days = append(days, ud)
	}
	return days, nil
}

// LastActivity implements statistics.ActivityReader
func (s *Store) LastActivity(ctx context.Context, src fitness.ActivitySource, pop fitness.Population) ([]fitness.UserDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := s.activityEvents(src)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]time.Time)
	for _, e := range events {
		if !s.admits(e.UserID, pop) {
			continue
		}
		day := fitness.StartOfDay(e.Day)
		if cur, ok := latest[e.UserID]; !ok || day.After(cur) {
			latest[e.UserID] = day
		}
	}
	days := make([]fitness.UserDay, 0, len(latest))
	for id, day := range latest {
		days = append(days, fitness.UserDay{UserID: id, Day: day})
	}
	return days, nil
}

// Users implements statistics.UserReader
func (s *Store) Users(ctx context.Context, pop fitness.Population) ([]fitness.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users := []fitness.User{}
	for _, u := range s.data.Users {
		if pop.Admits(u.Role) {
			users = append(users, u)
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// CountUsers implements statistics.UserReader
func (s *Store) CountUsers(ctx context.Context, pop fitness.Population, w fitness.Window) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for _, u := range s.data.Users {
		if pop.Admits(u.Role) && w.Contains(u.CreatedAt) {
			n++
		}
	}
	return n, nil
}

// Memberships implements statistics.UserReader
func (s *Store) Memberships(ctx context.Context, pop fitness.Population) ([]fitness.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.Membership{}
	for _, m := range s.data.Memberships {
		if s.admits(m.UserID, pop) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Trainers implements statistics.TrainerReader
func (s *Store) Trainers(ctx context.Context) ([]fitness.Trainer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]fitness.Trainer, 0, len(s.data.Trainers))
	for _, t := range s.data.Trainers {
		if t.FullName == "" {
			t.FullName = s.names[t.UserID]
		}
		out = append(out, t)
	}
	return out, nil
}

// Bookings implements statistics.TrainerReader
func (s *Store) Bookings(ctx context.Context, w fitness.Window) ([]fitness.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.Booking{}
	for _, b := range s.data.Bookings {
		if w.Contains(b.ScheduledAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Ratings implements statistics.TrainerReader
func (s *Store) Ratings(ctx context.Context, w fitness.Window) ([]fitness.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.Rating{}
	for _, r := range s.data.Ratings {
		if w.Contains(r.CreatedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CompletedRevenue implements statistics.FinanceReader
func (s *Store) CompletedRevenue(ctx context.Context, w fitness.Window) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var total float64
	for _, tx := range s.data.Transactions {
		if tx.Status == fitness.TransactionCompleted && w.Contains(tx.CreatedAt) {
			total += tx.Amount
		}
	}
	return total, nil
}

// Transactions implements statistics.FinanceReader
func (s *Store) Transactions(ctx context.Context, w fitness.Window) ([]fitness.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.Transaction{}
	for _, tx := range s.data.Transactions {
		if w.Contains(tx.CreatedAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// HealthRecords implements statistics.LogReader
func (s *Store) HealthRecords(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.HealthRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diseases := make(map[int64]string, len(s.data.Diseases))
	for _, d := range s.data.Diseases {
		diseases[d.ID] = d.Name
	}
	out := []fitness.HealthRecord{}
	for _, r := range s.data.HealthRecords {
		if !s.admits(r.UserID, pop) || !w.ContainsDay(r.RecordDate) {
			continue
		}
		if r.DiseaseID != nil && r.DiseaseName == nil {
			if name, ok := diseases[*r.DiseaseID]; ok {
				r.DiseaseName = &name
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Goals implements statistics.LogReader
func (s *Store) Goals(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.Goal{}
	for _, g := range s.data.Goals {
		if s.admits(g.UserID, pop) && w.ContainsDay(g.StartDate) {
			out = append(out, g)
		}
	}
	return out, nil
}

// WorkoutLogs implements statistics.LogReader
func (s *Store) WorkoutLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.WorkoutLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.WorkoutLog{}
	for _, l := range s.data.WorkoutLogs {
		if s.admits(l.UserID, pop) && w.ContainsDay(l.LogDate) {
			out = append(out, l)
		}
	}
	return out, nil
}

// NutritionLogs implements statistics.LogReader
func (s *Store) NutritionLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.NutritionLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	foods := make(map[int64]string, len(s.data.Foods))
	for _, f := range s.data.Foods {
		foods[f.ID] = f.Name
	}
	out := []fitness.NutritionLog{}
	for _, l := range s.data.NutritionLogs {
		if !s.admits(l.UserID, pop) || !w.ContainsDay(l.LogDate) {
			continue
		}
		if l.FoodID != nil && l.FoodName == nil {
			if name, ok := foods[*l.FoodID]; ok {
				l.FoodName = &name
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// AppUsage implements statistics.LogReader
func (s *Store) AppUsage(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.AppUsageEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []fitness.AppUsageEvent{}
	for _, e := range s.data.AppUsage {
		if s.admits(e.UserID, pop) && w.Contains(e.OccurredAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountEntities implements statistics.SystemReader
func (s *Store) CountEntities(ctx context.Context, e fitness.Entity, w fitness.Window) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var times []time.Time
	switch e {
	case fitness.EntityUsers:
		for _, u := range s.data.Users {
			times = append(times, u.CreatedAt)
		}
	case fitness.EntityTrainers:
		for _, t := range s.data.Trainers {
			times = append(times, t.CreatedAt)
		}
	case fitness.EntityFoods:
		for _, f := range s.data.Foods {
			times = append(times, f.CreatedAt)
		}
	case fitness.EntityDiseases:
		return int64(len(s.data.Diseases)), nil
	case fitness.EntityMemberships:
		for _, m := range s.data.Memberships {
			times = append(times, m.StartDate)
		}
	case fitness.EntityBookings:
		for _, b := range s.data.Bookings {
			times = append(times, b.ScheduledAt)
		}
	case fitness.EntityRatings:
		for _, r := range s.data.Ratings {
			times = append(times, r.CreatedAt)
		}
	case fitness.EntityTransactions:
		for _, tx := range s.data.Transactions {
			times = append(times, tx.CreatedAt)
		}
	case fitness.EntityGoals:
		for _, g := range s.data.Goals {
			times = append(times, g.StartDate)
		}
	case fitness.EntityHealthRecords:
		for _, r := range s.data.HealthRecords {
			times = append(times, r.RecordDate)
		}
	case fitness.EntityWorkoutLogs:
		for _, l := range s.data.WorkoutLogs {
			times = append(times, l.LogDate)
		}
	case fitness.EntityNutritionLogs:
		for _, l := range s.data.NutritionLogs {
			times = append(times, l.LogDate)
		}
	case fitness.EntityAppEvents:
		for _, ev := range s.data.AppUsage {
			times = append(times, ev.OccurredAt)
		}
	default:
		return 0, fmt.Errorf("unknown entity %q", e)
	}

	var n int64
	for _, t := range times {
		if w.Contains(t) {
			n++
		}
	}
	return n, nil
}
