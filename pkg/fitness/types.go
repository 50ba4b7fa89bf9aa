package fitness

import "time"

// Role identifies what a platform account is allowed to do
type Role string

const (
	RoleClient Role = "Client"
	RolePT     Role = "PT"
	RoleAdmin  Role = "Admin"
)

// IsClient reports whether the role counts toward client metrics.
// Anything that is not staff is a client.
func (r Role) IsClient() bool {
	return r != RolePT && r != RoleAdmin
}

// User is a platform account
type User struct {
	ID                     string     `json:"id"`
	FullName               string     `json:"full_name"`
	Email                  *string    `json:"email,omitempty"`
	Role                   Role       `json:"role"`
	Gender                 *string    `json:"gender,omitempty"`
	BirthDate              *time.Time `json:"birth_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	PasswordResetExpiresAt *time.Time `json:"password_reset_expires_at,omitempty"`
}

// HasEmail reports whether the user registered a non-empty email address
func (u User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// AppUsageEvent is one entry of the generic application usage log
type AppUsageEvent struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Feature    string    `json:"feature"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HealthRecord is a daily health measurement
type HealthRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	RecordDate  time.Time `json:"record_date"`
	HeightCm    *float64  `json:"height_cm,omitempty"`
	WeightKg    *float64  `json:"weight_kg,omitempty"`
	BMI         *float64  `json:"bmi,omitempty"`
	SleepHours  *float64  `json:"sleep_hours,omitempty"`
	WaterLiters *float64  `json:"water_liters,omitempty"`
	DiseaseID   *int64    `json:"disease_id,omitempty"`
	DiseaseName *string   `json:"disease_name,omitempty"`
}

// NutritionLog is one food entry of a user's food diary
type NutritionLog struct {
	ID       int64     `json:"id"`
	UserID   string    `json:"user_id"`
	LogDate  time.Time `json:"log_date"`
	FoodID   *int64    `json:"food_id,omitempty"`
	FoodName *string   `json:"food_name,omitempty"`
	MealType string    `json:"meal_type"`
	Calories float64   `json:"calories"`
	ProteinG float64   `json:"protein_g"`
	CarbsG   float64   `json:"carbs_g"`
	FatG     float64   `json:"fat_g"`
}

// WorkoutLog is one exercise entry of a user's workout diary
type WorkoutLog struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	LogDate         time.Time `json:"log_date"`
	ExerciseName    string    `json:"exercise_name"`
	DurationMinutes int       `json:"duration_minutes"`
	CaloriesBurned  float64   `json:"calories_burned"`
	Completed       bool      `json:"completed"`
}

// Membership statuses
const (
	MembershipActive    = "Active"
	MembershipSuspended = "Suspended"
	MembershipCancelled = "Cancelled"
	MembershipExpired   = "Expired"
)

// Membership is a paid (premium) subscription period
type Membership struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	PlanName  string     `json:"plan_name"`
	Status    string     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Price     float64    `json:"price"`
}

// ActiveOn reports whether the membership is active and unexpired on day
func (m Membership) ActiveOn(day time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	return m.EndDate == nil || !m.EndDate.Before(day)
}

// Trainer is the coaching profile of a PT account
type Trainer struct {
	UserID          string    `json:"user_id"`
	FullName        string    `json:"full_name"`
	Specialty       *string   `json:"specialty,omitempty"`
	ExperienceYears int       `json:"experience_years"`
	Verified        bool      `json:"verified"`
	CreatedAt       time.Time `json:"created_at"`
}

// Booking statuses
const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCompleted = "Completed"
	BookingCancelled = "Cancelled"
)

// Booking is a scheduled session between a client and a trainer
type Booking struct {
	ID          int64     `json:"id"`
	TrainerID   string    `json:"trainer_id"`
	ClientID    string    `json:"client_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

// Rating is a client's score for a trainer
type Rating struct {
	ID        int64     `json:"id"`
	TrainerID string    `json:"trainer_id"`
	ClientID  string    `json:"client_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction statuses
const (
	TransactionPending   = "Pending"
	TransactionCompleted = "Completed"
	TransactionFailed    = "Failed"
	TransactionRefunded  = "Refunded"
)

// Transaction is a payment made through one of the payment providers
type Transaction struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	TrainerID     *string   `json:"trainer_id,omitempty"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

// Goal is a client's fitness target
type Goal struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	GoalType  string     `json:"goal_type"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Completed bool       `json:"completed"`
	Progress  float64    `json:"progress"`
}

// Food is a catalog item referenced by nutrition logs
type Food struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Disease is a catalog condition referenced by health records
type Disease struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
