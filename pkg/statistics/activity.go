package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// UserSet is a set of user ids
type UserSet map[string]struct{}

// Add inserts id, ignoring empty ids
func (s UserSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NewUserSet builds a set from ids
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ActivityResolver answers "which users did something" by unioning the
// activity sources. A user active in several sources counts once.
type ActivityResolver struct {
	reader ActivityReader
}

// NewActivityResolver creates a resolver over reader
func NewActivityResolver(reader ActivityReader) *ActivityResolver {
	return &ActivityResolver{reader: reader}
}

// ResolveActiveUsers returns the distinct users with at least one event in
// any source inside w. When allow is non-nil only its members are kept.
func (r *ActivityResolver) ResolveActiveUsers(ctx context.Context, w fitness.Window, pop fitness.Population, allow UserSet) (UserSet, error) {
	bySource, err := r.ActiveBySource(ctx, w, pop)
	if err != nil {
		return nil, err
	}

	active := make(UserSet)
	for _, src := range fitness.ActivitySources {
		for id := range bySource[src] {
			if allow != nil && !allow.Has(id) {
				continue
			}
			active.Add(id)
		}
	}
	return active, nil
}

// ActiveBySource returns the active users of each source separately
func (r *ActivityResolver) ActiveBySource(ctx context.Context, w fitness.Window, pop fitness.Population) (map[fitness.ActivitySource]UserSet, error) {
	out := make(map[fitness.ActivitySource]UserSet, len(fitness.ActivitySources))
	for _, src := range fitness.ActivitySources {
		ids, err := r.reader.ActiveUserIDs(ctx, src, w, pop)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s activity: %w", src, err)
		}
		out[src] = NewUserSet(ids...)
	}
	return out, nil
}

// ActiveDays returns, per user, the sorted distinct days with activity in
// any source inside w
func (r *ActivityResolver) ActiveDays(ctx context.Context, w fitness.Window, pop fitness.Population) (map[string][]time.Time, error) {
	seen := make(map[string]map[time.Time]struct{})
	for _, src := range fitness.ActivitySources {
		days, err := r.reader.ActivityDays(ctx, src, w, pop)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s activity days: %w", src, err)
		}
		for _, ud := range days {
			if ud.UserID == "" {
				continue
			}
			day := fitness.StartOfDay(ud.Day)
			if !w.Contains(day) {
				continue
			}
			if seen[ud.UserID] == nil {
				seen[ud.UserID] = make(map[time.Time]struct{})
			}
			seen[ud.UserID][day] = struct{}{}
		}
	}

	out := make(map[string][]time.Time, len(seen))
	for id, set := range seen {
		days := make([]time.Time, 0, len(set))
		for d := range set {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		out[id] = days
	}
	return out, nil
}

// LastActivity returns the most recent activity day per user across all sources
func (r *ActivityResolver) LastActivity(ctx context.Context, pop fitness.Population) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for _, src := range fitness.ActivitySources {
		days, err := r.reader.LastActivity(ctx, src, pop)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s last activity: %w", src, err)
		}
		for _, ud := range days {
			if ud.UserID == "" {
				continue
			}
			day := fitness.StartOfDay(ud.Day)
			if cur, ok := out[ud.UserID]; !ok || day.After(cur) {
				out[ud.UserID] = day
			}
		}
	}
	return out, nil
}
