package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// feedSpec is the query behind one feed source. Every query selects
// (id, actor, label, amount, occurred_at) and takes the lower time bound
// as $1 and the row limit as $2.
type feedSpec struct {
	query    string
	dateOnly bool
	detail   func(label string, amount *float64) string
}

var feedSpecs = map[fitness.FeedKind]feedSpec{
	fitness.FeedRegistration: {
		query: `SELECT id, full_name, COALESCE(email, ''), NULL::double precision, created_at
			FROM users
			WHERE ` + roleClause(fitness.PopulationClients) + ` AND created_at >= $1
			ORDER BY created_at DESC
			LIMIT $2`,
		detail: func(label string, _ *float64) string {
			if label == "" {
				return "New account registered"
			}
			return fmt.Sprintf("New account registered with %s", label)
		},
	},
	fitness.FeedPremium: {
		query: `SELECT m.id::text, COALESCE(u.full_name, ''), m.plan_name, m.price, m.start_date
			FROM memberships m
			LEFT JOIN users u ON u.id = m.user_id
			WHERE m.status = 'Active' AND m.start_date >= $1
			ORDER BY m.start_date DESC, m.id DESC
			LIMIT $2`,
		dateOnly: true,
		detail: func(label string, _ *float64) string {
			return fmt.Sprintf("Activated the %s plan", label)
		},
	},
	fitness.FeedTransaction: {
		query: `SELECT t.id::text, COALESCE(u.full_name, ''), t.payment_method, t.amount, t.created_at
			FROM transactions t
			LEFT JOIN users u ON u.id = t.user_id
			WHERE t.status = 'Completed' AND t.created_at >= $1
			ORDER BY t.created_at DESC
			LIMIT $2`,
		detail: func(label string, amount *float64) string {
			if amount == nil {
				return fmt.Sprintf("Paid via %s", label)
			}
			return fmt.Sprintf("Paid %.2f via %s", *amount, label)
		},
	},
	fitness.FeedWorkout: {
		query: `SELECT w.id::text, COALESCE(u.full_name, ''), w.exercise_name, NULL::double precision, w.log_date
			FROM workout_logs w
			LEFT JOIN users u ON u.id = w.user_id
			WHERE w.completed = TRUE AND w.log_date >= $1
			ORDER BY w.log_date DESC, w.id DESC
			LIMIT $2`,
		dateOnly: true,
		detail: func(label string, _ *float64) string {
			return fmt.Sprintf("Completed %s", label)
		},
	},
	fitness.FeedTrainer: {
		query: `SELECT t.user_id, COALESCE(u.full_name, ''), COALESCE(t.specialty, ''), NULL::double precision, t.created_at
			FROM trainers t
			LEFT JOIN users u ON u.id = t.user_id
			WHERE t.created_at >= $1
			ORDER BY t.created_at DESC
			LIMIT $2`,
		detail: func(label string, _ *float64) string {
			if label == "" {
				return "Joined as a personal trainer"
			}
			return fmt.Sprintf("Joined as a %s trainer", label)
		},
	},
	// The catalog has no reliable creation audit, so a food counts as new
	// on the first day it appears in any nutrition log.
	fitness.FeedFood: {
		query: `SELECT f.id::text, '', f.name, NULL::double precision, MIN(n.log_date) AS first_seen
			FROM nutrition_logs n
			JOIN foods f ON f.id = n.food_id
			GROUP BY f.id, f.name
			HAVING MIN(n.log_date) >= $1
			ORDER BY first_seen DESC
			LIMIT $2`,
		dateOnly: true,
		detail: func(label string, _ *float64) string {
			return fmt.Sprintf("%s was added to the food catalog", label)
		},
	},
	fitness.FeedGoal: {
		query: `SELECT g.id::text, COALESCE(u.full_name, ''), g.goal_type, NULL::double precision, g.end_date
			FROM goals g
			LEFT JOIN users u ON u.id = g.user_id
			WHERE g.completed = TRUE AND g.end_date IS NOT NULL AND g.end_date >= $1
			ORDER BY g.end_date DESC, g.id DESC
			LIMIT $2`,
		dateOnly: true,
		detail: func(label string, _ *float64) string {
			return fmt.Sprintf("Reached a %s goal", label)
		},
	},
}

// RecentEvents implements statistics.FeedReader
func (s *StatsStore) RecentEvents(ctx context.Context, kind fitness.FeedKind, since time.Time, limit int) ([]fitness.FeedEvent, error) {
	def, ok := feedSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}

	var bound interface{} = since
	if def.dateOnly {
		bound = since.UTC().Format(fitness.DateLayout)
	}

	events := []fitness.FeedEvent{}
	err := s.query(ctx, "RecentEvents", def.query, []interface{}{bound, limit}, func(rows *sql.Rows) error {
		var e fitness.FeedEvent
		var label string
		var amount sql.NullFloat64
		if err := rows.Scan(&e.SourceID, &e.Actor, &label, &amount, &e.OccurredAt); err != nil {
			return err
		}
		e.Kind = kind
		e.Amount = nullFloat(amount)
		e.Detail = def.detail(label, e.Amount)
		events = append(events, e)
		return nil
	})
	return events, err
}
