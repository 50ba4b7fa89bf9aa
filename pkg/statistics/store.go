package statistics

import (
	"context"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// ActivityReader reads the raw activity sources. Implementations must drop
// rows with an empty user id and apply the population filter themselves.
type ActivityReader interface {
	// ActiveUserIDs returns the distinct users with at least one event of
	// src inside w
	ActiveUserIDs(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]string, error)
	// ActivityDays returns the distinct (user, day) pairs of src inside w
	ActivityDays(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]fitness.UserDay, error)
	// LastActivity returns the most recent event day of src per user
	LastActivity(ctx context.Context, src fitness.ActivitySource, pop fitness.Population) ([]fitness.UserDay, error)
}

// UserReader reads accounts and memberships
type UserReader interface {
	Users(ctx context.Context, pop fitness.Population) ([]fitness.User, error)
	CountUsers(ctx context.Context, pop fitness.Population, w fitness.Window) (int64, error)
	Memberships(ctx context.Context, pop fitness.Population) ([]fitness.Membership, error)
}

// TrainerReader reads coaching data
type TrainerReader interface {
	Trainers(ctx context.Context) ([]fitness.Trainer, error)
	Bookings(ctx context.Context, w fitness.Window) ([]fitness.Booking, error)
	Ratings(ctx context.Context, w fitness.Window) ([]fitness.Rating, error)
}

// FinanceReader reads payments
type FinanceReader interface {
	CompletedRevenue(ctx context.Context, w fitness.Window) (float64, error)
	Transactions(ctx context.Context, w fitness.Window) ([]fitness.Transaction, error)
}

// LogReader reads the per-user diaries, filtered on their date column
type LogReader interface {
	HealthRecords(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.HealthRecord, error)
	Goals(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.Goal, error)
	WorkoutLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.WorkoutLog, error)
	NutritionLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.NutritionLog, error)
	AppUsage(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.AppUsageEvent, error)
}

// SystemReader counts rows per table
type SystemReader interface {
	CountEntities(ctx context.Context, e fitness.Entity, w fitness.Window) (int64, error)
}

// FeedReader reads the newest events of one feed source
type FeedReader interface {
	RecentEvents(ctx context.Context, kind fitness.FeedKind, since time.Time, limit int) ([]fitness.FeedEvent, error)
}

// Store is everything the statistics service reads
type Store interface {
	ActivityReader
	UserReader
	TrainerReader
	FinanceReader
	LogReader
	SystemReader
	FeedReader
}
