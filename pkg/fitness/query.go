package fitness

import "time"

// ActivitySource names one of the logs whose union defines "the user did something"
type ActivitySource string

const (
	SourceAppUsage  ActivitySource = "app_usage"
	SourceHealth    ActivitySource = "health"
	SourceNutrition ActivitySource = "nutrition"
	SourceWorkout   ActivitySource = "workout"
)

// ActivitySources lists every activity source in a stable order
var ActivitySources = []ActivitySource{SourceAppUsage, SourceHealth, SourceNutrition, SourceWorkout}

// Population restricts a query to a group of accounts by role
type Population int

const (
	// PopulationAll applies no role filter
	PopulationAll Population = iota
	// PopulationClients keeps accounts whose role is neither PT nor Admin
	PopulationClients
	// PopulationTrainers keeps PT accounts
	PopulationTrainers
)

func (p Population) String() string {
	switch p {
	case PopulationClients:
		return "clients"
	case PopulationTrainers:
		return "trainers"
	default:
		return "all"
	}
}

// Admits reports whether an account with the given role belongs to p
func (p Population) Admits(role Role) bool {
	switch p {
	case PopulationClients:
		return role.IsClient()
	case PopulationTrainers:
		return role == RolePT
	default:
		return true
	}
}

// UserDay pairs a user with a calendar day
type UserDay struct {
	UserID string
	Day    time.Time
}

// Entity names a countable table for system statistics
type Entity string

const (
	EntityUsers         Entity = "users"
	EntityTrainers      Entity = "trainers"
	EntityFoods         Entity = "foods"
	EntityDiseases      Entity = "diseases"
	EntityMemberships   Entity = "memberships"
	EntityBookings      Entity = "bookings"
	EntityRatings       Entity = "ratings"
	EntityTransactions  Entity = "transactions"
	EntityGoals         Entity = "goals"
	EntityHealthRecords Entity = "health_records"
	EntityWorkoutLogs   Entity = "workout_logs"
	EntityNutritionLogs Entity = "nutrition_logs"
	EntityAppEvents     Entity = "app_usage_logs"
)

// Entities lists every countable entity in a stable order
var Entities = []Entity{
	EntityUsers, EntityTrainers, EntityFoods, EntityDiseases, EntityMemberships,
	EntityBookings, EntityRatings, EntityTransactions, EntityGoals,
	EntityHealthRecords, EntityWorkoutLogs, EntityNutritionLogs, EntityAppEvents,
}

// FeedKind names a recent-activity feed source
type FeedKind string

const (
	FeedRegistration FeedKind = "new_user"
	FeedPremium      FeedKind = "premium_activation"
	FeedTransaction  FeedKind = "transaction"
	FeedWorkout      FeedKind = "workout_completed"
	FeedTrainer      FeedKind = "new_trainer"
	FeedFood         FeedKind = "new_food"
	FeedGoal         FeedKind = "goal_completed"
)

// FeedKinds lists every feed source in a stable order
var FeedKinds = []FeedKind{
	FeedRegistration, FeedPremium, FeedTransaction, FeedWorkout,
	FeedTrainer, FeedFood, FeedGoal,
}

// FeedEvent is a raw timestamped event read from one feed source
type FeedEvent struct {
	Kind       FeedKind  `json:"kind"`
	SourceID   string    `json:"source_id"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail"`
	Amount     *float64  `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
