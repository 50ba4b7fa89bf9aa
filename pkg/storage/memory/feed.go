package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// RecentEvents implements statistics.FeedReader
func (s *Store) RecentEvents(ctx context.Context, kind fitness.FeedKind, since time.Time, limit int) ([]fitness.FeedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sinceDay := fitness.StartOfDay(since)
	var events []fitness.FeedEvent
	switch kind {
	case fitness.FeedRegistration:
		for _, u := range s.data.Users {
			if !u.Role.IsClient() || u.CreatedAt.Before(since) {
				continue
			}
			detail := "New account registered"
			if u.HasEmail() {
				detail = fmt.Sprintf("New account registered with %s", *u.Email)
			}
			events = append(events, fitness.FeedEvent{SourceID: u.ID, Actor: u.FullName, Detail: detail, OccurredAt: u.CreatedAt})
		}
	case fitness.FeedPremium:
		for _, m := range s.data.Memberships {
			if m.Status != fitness.MembershipActive || m.StartDate.Before(sinceDay) {
				continue
			}
			price := m.Price
			events = append(events, fitness.FeedEvent{
				SourceID:   strconv.FormatInt(m.ID, 10),
				Actor:      s.names[m.UserID],
				Detail:     fmt.Sprintf("Activated the %s plan", m.PlanName),
				Amount:     &price,
				OccurredAt: m.StartDate,
			})
		}
	case fitness.FeedTransaction:
		for _, tx := range s.data.Transactions {
			if tx.Status != fitness.TransactionCompleted || tx.CreatedAt.Before(since) {
				continue
			}
			amount := tx.Amount
			events = append(events, fitness.FeedEvent{
				SourceID:   strconv.FormatInt(tx.ID, 10),
				Actor:      s.names[tx.UserID],
				Detail:     fmt.Sprintf("Paid %.2f via %s", amount, tx.PaymentMethod),
				Amount:     &amount,
				OccurredAt: tx.CreatedAt,
			})
		}
	case fitness.FeedWorkout:
		for _, l := range s.data.WorkoutLogs {
			if !l.Completed || l.LogDate.Before(sinceDay) {
				continue
			}
			events = append(events, fitness.FeedEvent{
				SourceID:   strconv.FormatInt(l.ID, 10),
				Actor:      s.names[l.UserID],
				Detail:     fmt.Sprintf("Completed %s", l.ExerciseName),
				OccurredAt: l.LogDate,
			})
		}
	case fitness.FeedTrainer:
		for _, t := range s.data.Trainers {
			if t.CreatedAt.Before(since) {
				continue
			}
			detail := "Joined as a personal trainer"
			if t.Specialty != nil && *t.Specialty != "" {
				detail = fmt.Sprintf("Joined as a %s trainer", *t.Specialty)
			}
			events = append(events, fitness.FeedEvent{SourceID: t.UserID, Actor: s.names[t.UserID], Detail: detail, OccurredAt: t.CreatedAt})
		}
	case fitness.FeedFood:
		events = s.newFoods(sinceDay)
	case fitness.FeedGoal:
		for _, g := range s.data.Goals {
			if !g.Completed || g.EndDate == nil || g.EndDate.Before(sinceDay) {
				continue
			}
			events = append(events, fitness.FeedEvent{
				SourceID:   strconv.FormatInt(g.ID, 10),
				Actor:      s.names[g.UserID],
				Detail:     fmt.Sprintf("Reached a %s goal", g.GoalType),
				OccurredAt: *g.EndDate,
			})
		}
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}

	for i := range events {
		events[i].Kind = kind
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []fitness.FeedEvent{}
	}
	return events, nil
}

// newFoods treats a food as new on the first day it shows up in a nutrition log
func (s *Store) newFoods(sinceDay time.Time) []fitness.FeedEvent {
	names := make(map[int64]string, len(s.data.Foods))
	for _, f := range s.data.Foods {
		names[f.ID] = f.Name
	}
	firstSeen := make(map[int64]time.Time)
	for _, l := range s.data.NutritionLogs {
		if l.FoodID == nil {
			continue
		}
		if _, ok := names[*l.FoodID]; !ok {
			continue
		}
		day := fitness.StartOfDay(l.LogDate)
		if cur, ok := firstSeen[*l.FoodID]; !ok || day.Before(cur) {
			firstSeen[*l.FoodID] = day
		}
	}

	var events []fitness.FeedEvent
	for id, day := range firstSeen {
		if day.Before(sinceDay) {
			continue
		}
		events = append(events, fitness.FeedEvent{
			SourceID:   strconv.FormatInt(id, 10),
			Detail:     fmt.Sprintf("%s was added to the food catalog", names[id]),
			OccurredAt: day,
		})
	}
	return events
}
