package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitmatch/insights/pkg/fitness"
)

var tracer = otel.Tracer("github.com/fitmatch/insights/pkg/storage/postgres")

// StatsStore reads the fitness platform tables for the statistics service.
// It never writes.
type StatsStore struct {
	db func() *sql.DB
}

// NewStatsStore creates a store that reads from the manager's replicas
func NewStatsStore(cm *ConnectionManager) *StatsStore {
	return &StatsStore{db: cm.Replica}
}

// NewStatsStoreFromDB creates a store over a single connection pool
func NewStatsStoreFromDB(db *sql.DB) *StatsStore {
	return &StatsStore{db: func() *sql.DB { return db }}
}

func (s *StatsStore) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	))
}

// query runs q and calls scan for every row
func (s *StatsStore) query(ctx context.Context, op, q string, args []interface{}, scan func(*sql.Rows) error) error {
	ctx, span := s.startSpan(ctx, op)
	defer span.End()

	rows, err := s.db().QueryContext(ctx, q, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "iteration failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	span.SetAttributes(attribute.Int("db.rows", n))
	return nil
}

// queryRow runs a single-row query such as a COUNT or SUM
func (s *StatsStore) queryRow(ctx context.Context, op, q string, args []interface{}, dest ...interface{}) error {
	ctx, span := s.startSpan(ctx, op)
	defer span.End()

	err := s.db().QueryRowContext(ctx, q, args...).Scan(dest...)
	if err != nil && err != sql.ErrNoRows {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

func nullInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

// ActiveUserIDs implements statistics.ActivityReader
func (s *StatsStore) ActiveUserIDs(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]string, error) {
	def, ok := activitySources[src]
	if !ok {
		return nil, fmt.Errorf("unknown activity source %q", src)
	}
	q, args := activityQuery(def, pop, &w, shapeUsers)

	ids := []string{}
	err := s.query(ctx, "ActiveUserIDs", q, args, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// ActivityDays implements statistics.ActivityReader
func (s *StatsStore) ActivityDays(ctx context.Context, src fitness.ActivitySource, w fitness.Window, pop fitness.Population) ([]fitness.UserDay, error) {
	def, ok := activitySources[src]
	if !ok {
		return nil, fmt.Errorf("unknown activity source %q", src)
	}
	q, args := activityQuery(def, pop, &w, shapeDays)
	return s.userDays(ctx, "ActivityDays", q, args)
}

// LastActivity implements statistics.ActivityReader
func (s *StatsStore) LastActivity(ctx context.Context, src fitness.ActivitySource, pop fitness.Population) ([]fitness.UserDay, error) {
	def, ok := activitySources[src]
	if !ok {
		return nil, fmt.Errorf("unknown activity source %q", src)
	}
	q, args := activityQuery(def, pop, nil, shapeLast)
	return s.userDays(ctx, "LastActivity", q, args)
}

func (s *StatsStore) userDays(ctx context.Context, op, q string, args []interface{}) ([]fitness.UserDay, error) {
	days := []fitness.UserDay{}
	err := s.query(ctx, op, q, args, func(rows *sql.Rows) error {
		var ud fitness.UserDay
		if err := rows.Scan(&ud.UserID, &ud.Day); err != nil {
			return err
		}
		ud.Day = fitness.StartOfDay(ud.Day)
		days = append(days, ud)
		return nil
	})
	return days, err
}

// Users implements statistics.UserReader
func (s *StatsStore) Users(ctx context.Context, pop fitness.Population) ([]fitness.User, error) {
	f := (&filter{}).role(pop)
	q := `SELECT id, full_name, email, role, gender, birth_date, created_at, password_reset_expires_at
		FROM users` + f.sql() + ` ORDER BY created_at`

	users := []fitness.User{}
	err := s.query(ctx, "Users", q, f.args, func(rows *sql.Rows) error {
		var u fitness.User
		var email, gender sql.NullString
		var birth, resetExpiry sql.NullTime
		var role string
		if err := rows.Scan(&u.ID, &u.FullName, &email, &role, &gender, &birth, &u.CreatedAt, &resetExpiry); err != nil {
			return err
		}
		u.Role = fitness.Role(role)
		u.Email = nullString(email)
		u.Gender = nullString(gender)
		u.BirthDate = nullTime(birth)
		u.PasswordResetExpiresAt = nullTime(resetExpiry)
		users = append(users, u)
		return nil
	})
	return users, err
}

// CountUsers implements statistics.UserReader
func (s *StatsStore) CountUsers(ctx context.Context, pop fitness.Population, w fitness.Window) (int64, error) {
	f := (&filter{}).role(pop).window("created_at", false, w)
	var n int64
	err := s.queryRow(ctx, "CountUsers", "SELECT COUNT(*) FROM users"+f.sql(), f.args, &n)
	return n, err
}

// Memberships implements statistics.UserReader
func (s *StatsStore) Memberships(ctx context.Context, pop fitness.Population) ([]fitness.Membership, error) {
	f := (&filter{}).knownUser("user_id").population("user_id", pop)
	q := `SELECT id, user_id, plan_name, status, start_date, end_date, price FROM memberships` + f.sql()

	memberships := []fitness.Membership{}
	err := s.query(ctx, "Memberships", q, f.args, func(rows *sql.Rows) error {
		var m fitness.Membership
		var end sql.NullTime
		if err := rows.Scan(&m.ID, &m.UserID, &m.PlanName, &m.Status, &m.StartDate, &end, &m.Price); err != nil {
			return err
		}
		m.EndDate = nullTime(end)
		memberships = append(memberships, m)
		return nil
	})
	return memberships, err
}

// Trainers implements statistics.TrainerReader
func (s *StatsStore) Trainers(ctx context.Context) ([]fitness.Trainer, error) {
	q := `SELECT t.user_id, COALESCE(u.full_name, ''), t.specialty, t.experience_years, t.verified, t.created_at
		FROM trainers t
		LEFT JOIN users u ON u.id = t.user_id`

	trainers := []fitness.Trainer{}
	err := s.query(ctx, "Trainers", q, nil, func(rows *sql.Rows) error {
		var t fitness.Trainer
		var specialty sql.NullString
		if err := rows.Scan(&t.UserID, &t.FullName, &specialty, &t.ExperienceYears, &t.Verified, &t.CreatedAt); err != nil {
			return err
		}
		t.Specialty = nullString(specialty)
		trainers = append(trainers, t)
		return nil
	})
	return trainers, err
}

// Bookings implements statistics.TrainerReader
func (s *StatsStore) Bookings(ctx context.Context, w fitness.Window) ([]fitness.Booking, error) {
	f := (&filter{}).window("scheduled_at", false, w)
	q := `SELECT id, pt_id, client_id, scheduled_at, status FROM bookings` + f.sql()

	bookings := []fitness.Booking{}
	err := s.query(ctx, "Bookings", q, f.args, func(rows *sql.Rows) error {
		var b fitness.Booking
		if err := rows.Scan(&b.ID, &b.TrainerID, &b.ClientID, &b.ScheduledAt, &b.Status); err != nil {
			return err
		}
		bookings = append(bookings, b)
		return nil
	})
	return bookings, err
}

// Ratings implements statistics.TrainerReader
func (s *StatsStore) Ratings(ctx context.Context, w fitness.Window) ([]fitness.Rating, error) {
	f := (&filter{}).window("created_at", false, w)
	q := `SELECT id, pt_id, client_id, score, created_at FROM ratings` + f.sql()

	ratings := []fitness.Rating{}
	err := s.query(ctx, "Ratings", q, f.args, func(rows *sql.Rows) error {
		var r fitness.Rating
		if err := rows.Scan(&r.ID, &r.TrainerID, &r.ClientID, &r.Score, &r.CreatedAt); err != nil {
			return err
		}
		ratings = append(ratings, r)
		return nil
	})
	return ratings, err
}

// CompletedRevenue implements statistics.FinanceReader
func (s *StatsStore) CompletedRevenue(ctx context.Context, w fitness.Window) (float64, error) {
	f := (&filter{}).where("status = ?", fitness.TransactionCompleted).window("created_at", false, w)
	var total float64
	err := s.queryRow(ctx, "CompletedRevenue", "SELECT COALESCE(SUM(amount), 0) FROM transactions"+f.sql(), f.args, &total)
	return total, err
}

// Transactions implements statistics.FinanceReader
func (s *StatsStore) Transactions(ctx context.Context, w fitness.Window) ([]fitness.Transaction, error) {
	f := (&filter{}).window("created_at", false, w)
	q := `SELECT id, user_id, pt_id, amount, status, payment_method, created_at FROM transactions` + f.sql()

	transactions := []fitness.Transaction{}
	err := s.query(ctx, "Transactions", q, f.args, func(rows *sql.Rows) error {
		var tx fitness.Transaction
		var trainer sql.NullString
		if err := rows.Scan(&tx.ID, &tx.UserID, &trainer, &tx.Amount, &tx.Status, &tx.PaymentMethod, &tx.CreatedAt); err != nil {
			return err
		}
		tx.TrainerID = nullString(trainer)
		transactions = append(transactions, tx)
		return nil
	})
	return transactions, err
}

// HealthRecords implements statistics.LogReader
func (s *StatsStore) HealthRecords(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.HealthRecord, error) {
	f := (&filter{}).knownUser("h.user_id").population("h.user_id", pop).window("h.record_date", true, w)
	q := `SELECT h.id, h.user_id, h.record_date, h.height_cm, h.weight_kg, h.bmi, h.sleep_hours, h.water_liters, h.disease_id, d.name
		FROM health_records h
		LEFT JOIN diseases d ON d.id = h.disease_id` + f.sql()

	records := []fitness.HealthRecord{}
	err := s.query(ctx, "HealthRecords", q, f.args, func(rows *sql.Rows) error {
		var r fitness.HealthRecord
		var height, weight, bmi, sleep, water sql.NullFloat64
		var diseaseID sql.NullInt64
		var diseaseName sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.RecordDate, &height, &weight, &bmi, &sleep, &water, &diseaseID, &diseaseName); err != nil {
			return err
		}
		r.HeightCm = nullFloat(height)
		r.WeightKg = nullFloat(weight)
		r.BMI = nullFloat(bmi)
		r.SleepHours = nullFloat(sleep)
		r.WaterLiters = nullFloat(water)
		r.DiseaseID = nullInt(diseaseID)
		r.DiseaseName = nullString(diseaseName)
		records = append(records, r)
		return nil
	})
	return records, err
}

// Goals implements statistics.LogReader
func (s *StatsStore) Goals(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.Goal, error) {
	f := (&filter{}).knownUser("user_id").population("user_id", pop).window("start_date", true, w)
	q := `SELECT id, user_id, goal_type, start_date, end_date, completed, progress FROM goals` + f.sql()

	goals := []fitness.Goal{}
	err := s.query(ctx, "Goals", q, f.args, func(rows *sql.Rows) error {
		var g fitness.Goal
		var end sql.NullTime
		if err := rows.Scan(&g.ID, &g.UserID, &g.GoalType, &g.StartDate, &end, &g.Completed, &g.Progress); err != nil {
			return err
		}
		g.EndDate = nullTime(end)
		goals = append(goals, g)
		return nil
	})
	return goals, err
}

// WorkoutLogs implements statistics.LogReader
func (s *StatsStore) WorkoutLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.WorkoutLog, error) {
	f := (&filter{}).knownUser("user_id").population("user_id", pop).window("log_date", true, w)
	q := `SELECT id, user_id, log_date, exercise_name, duration_minutes, calories_burned, completed FROM workout_logs` + f.sql()

	logs := []fitness.WorkoutLog{}
	err := s.query(ctx, "WorkoutLogs", q, f.args, func(rows *sql.Rows) error {
		var l fitness.WorkoutLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.LogDate, &l.ExerciseName, &l.DurationMinutes, &l.CaloriesBurned, &l.Completed); err != nil {
			return err
		}
		logs = append(logs, l)
		return nil
	})
	return logs, err
}

// NutritionLogs implements statistics.LogReader
func (s *StatsStore) NutritionLogs(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.NutritionLog, error) {
	f := (&filter{}).knownUser("n.user_id").population("n.user_id", pop).window("n.log_date", true, w)
	q := `SELECT n.id, n.user_id, n.log_date, n.food_id, f.name, n.meal_type, n.calories, n.protein_g, n.carbs_g, n.fat_g
		FROM nutrition_logs n
		LEFT JOIN foods f ON f.id = n.food_id` + f.sql()

	logs := []fitness.NutritionLog{}
	err := s.query(ctx, "NutritionLogs", q, f.args, func(rows *sql.Rows) error {
		var l fitness.NutritionLog
		var foodID sql.NullInt64
		var foodName sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.LogDate, &foodID, &foodName, &l.MealType, &l.Calories, &l.ProteinG, &l.CarbsG, &l.FatG); err != nil {
			return err
		}
		l.FoodID = nullInt(foodID)
		l.FoodName = nullString(foodName)
		logs = append(logs, l)
		return nil
	})
	return logs, err
}

// AppUsage implements statistics.LogReader
func (s *StatsStore) AppUsage(ctx context.Context, w fitness.Window, pop fitness.Population) ([]fitness.AppUsageEvent, error) {
	f := (&filter{}).knownUser("user_id").population("user_id", pop).window("occurred_at", false, w)
	q := `SELECT id, user_id, action, feature, occurred_at FROM app_usage_logs` + f.sql()

	events := []fitness.AppUsageEvent{}
	err := s.query(ctx, "AppUsage", q, f.args, func(rows *sql.Rows) error {
		var e fitness.AppUsageEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Feature, &e.OccurredAt); err != nil {
			return err
		}
		events = append(events, e)
		return nil
	})
	return events, err
}

// CountEntities implements statistics.SystemReader
func (s *StatsStore) CountEntities(ctx context.Context, e fitness.Entity, w fitness.Window) (int64, error) {
	def, ok := entities[e]
	if !ok {
		return 0, fmt.Errorf("unknown entity %q", e)
	}
	f := &filter{}
	if def.timeCol != "" && !w.IsAllTime() {
		f.window(def.timeCol, def.dateOnly, w)
	}
	var n int64
	err := s.queryRow(ctx, "CountEntities", fmt.Sprintf("SELECT COUNT(*) FROM %s%s", e, f.sql()), f.args, &n)
	return n, err
}
