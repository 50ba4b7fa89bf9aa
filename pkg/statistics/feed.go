package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

const (
	// DefaultFeedLimit is used when the caller asks for no particular size
	DefaultFeedLimit = 20
	// MaxFeedLimit caps the feed size
	MaxFeedLimit = 100
	// FeedLookback is how far back the feed reaches
	FeedLookback = 7 * 24 * time.Hour

	feedPerSource = 5
)

var feedTitles = map[fitness.FeedKind]string{
	fitness.FeedRegistration: "New user registered",
	fitness.FeedPremium:      "Premium membership activated",
	fitness.FeedTransaction:  "Payment completed",
	fitness.FeedWorkout:      "Workout completed",
	fitness.FeedTrainer:      "New trainer joined",
	fitness.FeedFood:         "New food added",
	fitness.FeedGoal:         "Goal completed",
}

// ClampFeedLimit caps a requested feed size at MaxFeedLimit. A
// non-positive size selects DefaultFeedLimit.
func ClampFeedLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultFeedLimit
	case limit > MaxFeedLimit:
		return MaxFeedLimit
	default:
		return limit
	}
}

func feedEntry(e fitness.FeedEvent) ActivityEntry {
	return ActivityEntry{
		ID:          fmt.Sprintf("%s_%s", e.Kind, e.SourceID),
		Type:        string(e.Kind),
		Title:       feedTitles[e.Kind],
		Description: e.Detail,
		Actor:       e.Actor,
		Amount:      e.Amount,
		Timestamp:   e.OccurredAt,
	}
}

func (s *Service) recentActivities(ctx context.Context, limit int) (*[]ActivityEntry, error) {
	limit = ClampFeedLimit(limit)
	since := s.now().Add(-FeedLookback)

	feed := make([]ActivityEntry, 0, len(fitness.FeedKinds)*feedPerSource)
	for _, kind := range fitness.FeedKinds {
		events, err := s.store.RecentEvents(ctx, kind, since, feedPerSource)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s events: %w", kind, err)
		}
		for _, e := range topN(events, feedPerSource) {
			feed = append(feed, feedEntry(e))
		}
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	feed = topN(feed, limit)
	return &feed, nil
}
