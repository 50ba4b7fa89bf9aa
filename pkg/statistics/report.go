package statistics

import (
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// CountPoint is a single point of a count time series
type CountPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ValuePoint is a single point of a numeric time series
type ValuePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// LabeledCount is one bucket of a distribution
type LabeledCount struct {
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Overview contains the headline dashboard counts and their growth
type Overview struct {
	NewUsers    int64   `json:"new_users"`
	NewTrainers int64   `json:"new_trainers"`
	Revenue     float64 `json:"revenue"`
	ActiveUsers int64   `json:"active_users"`

	PreviousNewUsers    int64   `json:"previous_new_users"`
	PreviousNewTrainers int64   `json:"previous_new_trainers"`
	PreviousRevenue     float64 `json:"previous_revenue"`
	PreviousActiveUsers int64   `json:"previous_active_users"`

	NewUsersGrowth    float64 `json:"new_users_growth"`
	NewTrainersGrowth float64 `json:"new_trainers_growth"`
	RevenueGrowth     float64 `json:"revenue_growth"`
	ActiveUsersGrowth float64 `json:"active_users_growth"`

	TotalUsers    int64 `json:"total_users"`
	TotalTrainers int64 `json:"total_trainers"`
}

// AgeDistribution buckets clients by age in whole years
type AgeDistribution struct {
	Under18    int64 `json:"under_18"`
	From18To25 int64 `json:"from_18_to_25"`
	From26To45 int64 `json:"from_26_to_45"`
	Over45     int64 `json:"over_45"`
	Unknown    int64 `json:"unknown"`
}

// StatusBreakdown counts clients per account status. Every client is in
// exactly one bucket.
type StatusBreakdown struct {
	Active     int64 `json:"active"`
	Suspended  int64 `json:"suspended"`
	Locked     int64 `json:"locked"`
	Unverified int64 `json:"unverified"`
}

// Total returns the number of classified accounts
func (b StatusBreakdown) Total() int64 {
	return b.Active + b.Suspended + b.Locked + b.Unverified
}

// UserAnalytics describes the client population
type UserAnalytics struct {
	TotalUsers              int64           `json:"total_users"`
	NewRegistrationsInRange int64           `json:"new_registrations_in_range"`
	ActiveUsersInRange      int64           `json:"active_users_in_range"`
	PremiumUsers            int64           `json:"premium_users"`
	RegistrationTrend       []CountPoint    `json:"registration_trend"`
	GenderDistribution      []LabeledCount  `json:"gender_distribution"`
	AgeDistribution         AgeDistribution `json:"age_distribution"`
	DailyActiveUsers        []CountPoint    `json:"daily_active_users"`
	MonthlyActiveUsers      []CountPoint    `json:"monthly_active_users"`
	AccountStatus           StatusBreakdown `json:"account_status"`
	Retention7Day           float64         `json:"retention_7_day"`
	Retention30Day          float64         `json:"retention_30_day"`
}

// TrainerSummary is one row of the trainer leaderboard
type TrainerSummary struct {
	TrainerID         string  `json:"trainer_id"`
	FullName          string  `json:"full_name"`
	Bookings          int64   `json:"bookings"`
	CompletedBookings int64   `json:"completed_bookings"`
	Revenue           float64 `json:"revenue"`
	AverageRating     float64 `json:"average_rating"`
	Ratings           int64   `json:"ratings"`
}

// PTAnalytics describes personal trainer performance
type PTAnalytics struct {
	TotalTrainers          int64            `json:"total_trainers"`
	VerifiedTrainers       int64            `json:"verified_trainers"`
	NewTrainersInRange     int64            `json:"new_trainers_in_range"`
	AverageExperienceYears float64          `json:"average_experience_years"`
	TotalBookings          int64            `json:"total_bookings"`
	CompletedBookings      int64            `json:"completed_bookings"`
	CancelledBookings      int64            `json:"cancelled_bookings"`
	CancelRate             float64          `json:"cancel_rate"`
	BookingsByStatus       []LabeledCount   `json:"bookings_by_status"`
	ClientsPerTrainer      float64          `json:"clients_per_trainer"`
	AverageRating          float64          `json:"average_rating"`
	TotalRatings           int64            `json:"total_ratings"`
	TopTrainers            []TrainerSummary `json:"top_trainers"`
	Specialties            []LabeledCount   `json:"specialties"`
}

// BMIDistribution holds the share of BMI samples per clinical category
type BMIDistribution struct {
	Underweight float64 `json:"underweight"`
	Normal      float64 `json:"normal"`
	Overweight  float64 `json:"overweight"`
	Obese       float64 `json:"obese"`
	Samples     int64   `json:"samples"`
}

// HealthAnalytics summarizes client health records
type HealthAnalytics struct {
	TotalRecords       int64           `json:"total_records"`
	UsersTracked       int64           `json:"users_tracked"`
	AverageBMI         float64         `json:"average_bmi"`
	AverageHeightCm    float64         `json:"average_height_cm"`
	AverageWeightKg    float64         `json:"average_weight_kg"`
	AverageSleepHours  float64         `json:"average_sleep_hours"`
	AverageWaterLiters float64         `json:"average_water_liters"`
	BMIDistribution    BMIDistribution `json:"bmi_distribution"`
	Diseases           []LabeledCount  `json:"diseases"`
	BMITrend           []ValuePoint    `json:"bmi_trend"`
}

// GoalsAnalytics summarizes client goals
type GoalsAnalytics struct {
	TotalGoals            int64          `json:"total_goals"`
	CompletedGoals        int64          `json:"completed_goals"`
	InProgressGoals       int64          `json:"in_progress_goals"`
	CancelledGoals        int64          `json:"cancelled_goals"`
	CompletionRate        float64        `json:"completion_rate"`
	AverageCompletionDays float64        `json:"average_completion_days"`
	AverageProgress       float64        `json:"average_progress"`
	GoalsByType           []LabeledCount `json:"goals_by_type"`
	GoalTrend             []CountPoint   `json:"goal_trend"`
}

// ExerciseSummary is one row of the exercise leaderboard
type ExerciseSummary struct {
	Name           string  `json:"name"`
	Sessions       int64   `json:"sessions"`
	TotalMinutes   int64   `json:"total_minutes"`
	CaloriesBurned float64 `json:"calories_burned"`
}

// WorkoutAnalytics summarizes client workout logs
type WorkoutAnalytics struct {
	TotalLogs              int64             `json:"total_logs"`
	CompletedLogs          int64             `json:"completed_logs"`
	CompletionRate         float64           `json:"completion_rate"`
	ActiveUsers            int64             `json:"active_users"`
	TotalMinutes           int64             `json:"total_minutes"`
	AverageDurationMinutes float64           `json:"average_duration_minutes"`
	TotalCaloriesBurned    float64           `json:"total_calories_burned"`
	AverageCaloriesBurned  float64           `json:"average_calories_burned"`
	TopExercises           []ExerciseSummary `json:"top_exercises"`
	DailyTrend             []CountPoint      `json:"daily_trend"`
	WeekdayDistribution    []LabeledCount    `json:"weekday_distribution"`
}

// MacroSplit is the share of calories coming from each macronutrient
type MacroSplit struct {
	ProteinPct float64 `json:"protein_pct"`
	CarbsPct   float64 `json:"carbs_pct"`
	FatPct     float64 `json:"fat_pct"`
}

// FoodSummary is one row of the food leaderboard
type FoodSummary struct {
	Name     string  `json:"name"`
	Entries  int64   `json:"entries"`
	Calories float64 `json:"calories"`
}

// NutritionAnalytics summarizes client food diaries
type NutritionAnalytics struct {
	TotalLogs            int64          `json:"total_logs"`
	UsersLogging         int64          `json:"users_logging"`
	AverageDailyCalories float64        `json:"average_daily_calories"`
	AverageProteinG      float64        `json:"average_protein_g"`
	AverageCarbsG        float64        `json:"average_carbs_g"`
	AverageFatG          float64        `json:"average_fat_g"`
	MacroSplit           MacroSplit     `json:"macro_split"`
	MealTypes            []LabeledCount `json:"meal_types"`
	TopFoods             []FoodSummary  `json:"top_foods"`
	DailyCalories        []ValuePoint   `json:"daily_calories"`
}

// MethodRevenue is revenue attributed to one payment method
type MethodRevenue struct {
	Method       string  `json:"method"`
	Transactions int64   `json:"transactions"`
	Revenue      float64 `json:"revenue"`
	Percentage   float64 `json:"percentage"`
}

// FinanceAnalytics summarizes payments
type FinanceAnalytics struct {
	TotalRevenue            float64         `json:"total_revenue"`
	NetRevenue              float64         `json:"net_revenue"`
	TrainerPayout           float64         `json:"trainer_payout"`
	TotalTransactions       int64           `json:"total_transactions"`
	CompletedTransactions   int64           `json:"completed_transactions"`
	SuccessRate             float64         `json:"success_rate"`
	AverageTransactionValue float64         `json:"average_transaction_value"`
	TransactionsByStatus    []LabeledCount  `json:"transactions_by_status"`
	RevenueByMethod         []MethodRevenue `json:"revenue_by_method"`
	MonthlyRevenue          []ValuePoint    `json:"monthly_revenue"`
}

// EntityCount is the row count of one table
type EntityCount struct {
	Entity  string `json:"entity"`
	Total   int64  `json:"total"`
	InRange int64  `json:"in_range"`
}

// SystemAnalytics describes data volume across the platform
type SystemAnalytics struct {
	Entities     []EntityCount  `json:"entities"`
	UsersByRole  []LabeledCount `json:"users_by_role"`
	TotalRecords int64          `json:"total_records"`
}

// HourCount is the number of events in one hour of the day
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// BehaviorAnalytics describes how clients use the application
type BehaviorAnalytics struct {
	TotalEvents         int64          `json:"total_events"`
	ActiveUsers         int64          `json:"active_users"`
	EventsPerUser       float64        `json:"events_per_user"`
	TopFeatures         []LabeledCount `json:"top_features"`
	TopActions          []LabeledCount `json:"top_actions"`
	HourlyDistribution  []HourCount    `json:"hourly_distribution"`
	WeekdayDistribution []LabeledCount `json:"weekday_distribution"`
	SourceBreakdown     []LabeledCount `json:"source_breakdown"`
	AverageActiveDays   float64        `json:"average_active_days"`
	AverageStreakDays   float64        `json:"average_streak_days"`
	LongestStreakDays   int            `json:"longest_streak_days"`
}

// ActivityEntry is one row of the recent activity feed
type ActivityEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	Amount      *float64  `json:"amount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatisticsReport is the composite admin dashboard payload
type StatisticsReport struct {
	From             string             `json:"from"`
	To               string             `json:"to"`
	AllTime          bool               `json:"all_time"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Overview         Overview           `json:"overview"`
	Users            UserAnalytics      `json:"users"`
	Trainers         PTAnalytics        `json:"trainers"`
	Health           HealthAnalytics    `json:"health"`
	Goals            GoalsAnalytics     `json:"goals"`
	Workouts         WorkoutAnalytics   `json:"workouts"`
	Nutrition        NutritionAnalytics `json:"nutrition"`
	Finance          FinanceAnalytics   `json:"finance"`
	System           SystemAnalytics    `json:"system"`
	Behavior         BehaviorAnalytics  `json:"behavior"`
	RecentActivities []ActivityEntry    `json:"recent_activities"`
}

// The constructors below return zero-valued reports with every slice
// allocated, so encoded reports never carry null sections.

func newOverview() *Overview { return &Overview{} }

func newUserAnalytics() *UserAnalytics {
	return &UserAnalytics{
		RegistrationTrend:  []CountPoint{},
		GenderDistribution: []LabeledCount{},
		DailyActiveUsers:   []CountPoint{},
		MonthlyActiveUsers: []CountPoint{},
	}
}

func newPTAnalytics() *PTAnalytics {
	return &PTAnalytics{
		BookingsByStatus: []LabeledCount{},
		TopTrainers:      []TrainerSummary{},
		Specialties:      []LabeledCount{},
	}
}

func newHealthAnalytics() *HealthAnalytics {
	return &HealthAnalytics{Diseases: []LabeledCount{}, BMITrend: []ValuePoint{}}
}

func newGoalsAnalytics() *GoalsAnalytics {
	return &GoalsAnalytics{GoalsByType: []LabeledCount{}, GoalTrend: []CountPoint{}}
}

func newWorkoutAnalytics() *WorkoutAnalytics {
	return &WorkoutAnalytics{
		TopExercises:        []ExerciseSummary{},
		DailyTrend:          []CountPoint{},
		WeekdayDistribution: []LabeledCount{},
	}
}

func newNutritionAnalytics() *NutritionAnalytics {
	return &NutritionAnalytics{
		MealTypes:     []LabeledCount{},
		TopFoods:      []FoodSummary{},
		DailyCalories: []ValuePoint{},
	}
}

func newFinanceAnalytics() *FinanceAnalytics {
	return &FinanceAnalytics{
		TransactionsByStatus: []LabeledCount{},
		RevenueByMethod:      []MethodRevenue{},
		MonthlyRevenue:       []ValuePoint{},
	}
}

func newSystemAnalytics() *SystemAnalytics {
	return &SystemAnalytics{Entities: []EntityCount{}, UsersByRole: []LabeledCount{}}
}

func newBehaviorAnalytics() *BehaviorAnalytics {
	return &BehaviorAnalytics{
		TopFeatures:         []LabeledCount{},
		TopActions:          []LabeledCount{},
		HourlyDistribution:  []HourCount{},
		WeekdayDistribution: []LabeledCount{},
		SourceBreakdown:     []LabeledCount{},
	}
}

func newActivityFeed() *[]ActivityEntry {
	feed := []ActivityEntry{}
	return &feed
}

func newStatisticsReport(w fitness.Window, now time.Time) *StatisticsReport {
	r := &StatisticsReport{
		AllTime:          w.IsAllTime(),
		GeneratedAt:      now,
		Overview:         *newOverview(),
		Users:            *newUserAnalytics(),
		Trainers:         *newPTAnalytics(),
		Health:           *newHealthAnalytics(),
		Goals:            *newGoalsAnalytics(),
		Workouts:         *newWorkoutAnalytics(),
		Nutrition:        *newNutritionAnalytics(),
		Finance:          *newFinanceAnalytics(),
		System:           *newSystemAnalytics(),
		Behavior:         *newBehaviorAnalytics(),
		RecentActivities: []ActivityEntry{},
	}
	if !r.AllTime {
		r.From = w.FirstDay().Format(fitness.DateLayout)
		r.To = w.LastDay().Format(fitness.DateLayout)
	}
	return r
}
