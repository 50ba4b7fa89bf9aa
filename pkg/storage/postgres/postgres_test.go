package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitmatch/insights/pkg/fitness"
)

func newMockStore(t *testing.T) (*StatsStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStatsStoreFromDB(db), mock
}

func january() fitness.Window {
	return fitness.DayWindow(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	)
}

func TestPopulationClause(t *testing.T) {
	assert.Equal(t, "", populationClause("user_id", fitness.PopulationAll))
	assert.Equal(t,
		"user_id IN (SELECT id FROM users WHERE role NOT IN ('PT', 'Admin'))",
		populationClause("user_id", fitness.PopulationClients))
	assert.Equal(t,
		"h.user_id IN (SELECT id FROM users WHERE role = 'PT')",
		populationClause("h.user_id", fitness.PopulationTrainers))
}

func TestActivityQuery(t *testing.T) {
	w := january()

	t.Run("date source compares calendar dates", func(t *testing.T) {
		q, args := activityQuery(activitySources[fitness.SourceHealth], fitness.PopulationClients, &w, shapeUsers)

		assert.Equal(t, "SELECT DISTINCT user_id FROM health_records WHERE user_id IS NOT NULL AND user_id <> '' AND "+
			"user_id IN (SELECT id FROM users WHERE role NOT IN ('PT', 'Admin')) AND "+
			"record_date >= $1 AND record_date < $2", q)
		assert.Equal(t, []interface{}{"2024-01-01", "2024-02-01"}, args)
	})

	t.Run("timestamp source compares instants", func(t *testing.T) {
		_, args := activityQuery(activitySources[fitness.SourceAppUsage], fitness.PopulationAll, &w, shapeUsers)
		require.Len(t, args, 2)
		assert.Equal(t, w.Start, args[0])
		assert.Equal(t, w.End, args[1])
	})

	t.Run("workout source only counts completions", func(t *testing.T) {
		q, _ := activityQuery(activitySources[fitness.SourceWorkout], fitness.PopulationAll, &w, shapeUsers)
		assert.Contains(t, q, "completed = TRUE")
	})

	t.Run("day shape truncates timestamps to UTC dates", func(t *testing.T) {
		q, _ := activityQuery(activitySources[fitness.SourceAppUsage], fitness.PopulationAll, &w, shapeDays)
		assert.Contains(t, q, "SELECT DISTINCT user_id, (occurred_at AT TIME ZONE 'UTC')::date AS day FROM app_usage_logs")
	})

	t.Run("last shape reads the whole source", func(t *testing.T) {
		q, args := activityQuery(activitySources[fitness.SourceNutrition], fitness.PopulationClients, nil, shapeLast)
		assert.Contains(t, q, "MAX(log_date)")
		assert.Contains(t, q, "GROUP BY user_id")
		assert.Empty(t, args)
	})
}

func TestFilter_Placeholders(t *testing.T) {
	f := (&filter{}).where("status = ?", "Completed").window("created_at", true, january())
	assert.Equal(t, " WHERE status = $1 AND created_at >= $2 AND created_at < $3", f.sql())
	assert.Equal(t, []interface{}{"Completed", "2024-01-01", "2024-02-01"}, f.args)
	assert.Equal(t, "", (&filter{}).sql())
}

func TestStatsStore_ActiveUserIDs(t *testing.T) {
	store, mock := newMockStore(t)
	w := january()

	mock.ExpectQuery(`SELECT DISTINCT user_id FROM nutrition_logs WHERE .*log_date >= \$1 AND log_date < \$2`).
		WithArgs("2024-01-01", "2024-02-01").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	ids, err := store.ActiveUserIDs(context.Background(), fitness.SourceNutrition, w, fitness.PopulationClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_ActiveUserIDs_UnknownSource(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.ActiveUserIDs(context.Background(), fitness.ActivitySource("steps"), january(), fitness.PopulationAll)
	assert.Error(t, err)
}

func TestStatsStore_ActivityDays(t *testing.T) {
	store, mock := newMockStore(t)
	day := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT DISTINCT user_id, \(occurred_at AT TIME ZONE 'UTC'\)::date AS day FROM app_usage_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "day"}).AddRow("u1", day))

	days, err := store.ActivityDays(context.Background(), fitness.SourceAppUsage, january(), fitness.PopulationClients)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "u1", days[0].UserID)
	assert.True(t, day.Equal(days[0].Day))
}

func TestStatsStore_Users(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)
	birth := time.Date(1990, time.May, 4, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "role", "gender", "birth_date", "created_at", "password_reset_expires_at"}).
		AddRow("u1", "Linh Tran", "linh@example.com", "Client", "Female", birth, created, nil).
		AddRow("u2", "No Email", nil, "Client", nil, nil, created, nil)
	mock.ExpectQuery(`SELECT id, full_name, email, role, gender, birth_date, created_at, password_reset_expires_at\s+FROM users WHERE role NOT IN \('PT', 'Admin'\)`).
		WillReturnRows(rows)

	users, err := store.Users(context.Background(), fitness.PopulationClients)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, fitness.RoleClient, users[0].Role)
	require.NotNil(t, users[0].Email)
	assert.Equal(t, "linh@example.com", *users[0].Email)
	require.NotNil(t, users[0].BirthDate)
	assert.True(t, birth.Equal(*users[0].BirthDate))
	assert.Nil(t, users[0].PasswordResetExpiresAt)

	assert.False(t, users[1].HasEmail())
	assert.Nil(t, users[1].Gender)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_CountUsers(t *testing.T) {
	store, mock := newMockStore(t)
	w := january()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role = 'PT' AND created_at >= \$1 AND created_at < \$2`).
		WithArgs(w.Start, w.End).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountUsers(context.Background(), fitness.PopulationTrainers, w)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_CompletedRevenue(t *testing.T) {
	store, mock := newMockStore(t)
	w := january()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM transactions WHERE status = \$1`).
		WithArgs("Completed", w.Start, w.End).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1250.5))

	total, err := store.CompletedRevenue(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 1250.5, total)
}

func TestStatsStore_HealthRecords(t *testing.T) {
	store, mock := newMockStore(t)
	day := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "record_date", "height_cm", "weight_kg", "bmi", "sleep_hours", "water_liters", "disease_id", "name"}).
		AddRow(1, "u1", day, 170.0, 65.0, 22.5, nil, 2.0, 3, "Diabetes").
		AddRow(2, "u2", day, nil, nil, nil, 7.5, nil, nil, nil)
	mock.ExpectQuery(`FROM health_records h\s+LEFT JOIN diseases d ON d.id = h.disease_id WHERE h.user_id IS NOT NULL`).
		WithArgs("2024-01-01", "2024-02-01").
		WillReturnRows(rows)

	records, err := store.HealthRecords(context.Background(), january(), fitness.PopulationClients)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].BMI)
	assert.Equal(t, 22.5, *records[0].BMI)
	assert.Nil(t, records[0].SleepHours)
	require.NotNil(t, records[0].DiseaseName)
	assert.Equal(t, "Diabetes", *records[0].DiseaseName)

	assert.Nil(t, records[1].BMI)
	assert.Nil(t, records[1].DiseaseID)
}

func TestStatsStore_CountEntities(t *testing.T) {
	t.Run("table without time dimension ignores the window", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM diseases$`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

		n, err := store.CountEntities(context.Background(), fitness.EntityDiseases, january())
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})

	t.Run("date table uses date bounds", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM goals WHERE start_date >= \$1 AND start_date < \$2`).
			WithArgs("2024-01-01", "2024-02-01").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		n, err := store.CountEntities(context.Background(), fitness.EntityGoals, january())
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("all time has no predicate", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM transactions$`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))

		n, err := store.CountEntities(context.Background(), fitness.EntityTransactions, fitness.AllTime())
		require.NoError(t, err)
		assert.Equal(t, int64(40), n)
	})

	t.Run("unknown entity", func(t *testing.T) {
		store, _ := newMockStore(t)
		_, err := store.CountEntities(context.Background(), fitness.Entity("sessions"), january())
		assert.Error(t, err)
	})
}

func TestStatsStore_RecentEvents(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2024, time.January, 24, 15, 0, 0, 0, time.UTC)
	logged := time.Date(2024, time.January, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM workout_logs w`).
		WithArgs("2024-01-24", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "exercise_name", "amount", "log_date"}).
			AddRow("42", "Minh Pham", "Deadlift", nil, logged))

	events, err := store.RecentEvents(context.Background(), fitness.FeedWorkout, since, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fitness.FeedWorkout, events[0].Kind)
	assert.Equal(t, "42", events[0].SourceID)
	assert.Equal(t, "Completed Deadlift", events[0].Detail)
	assert.Nil(t, events[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_RecentEvents_RegistrationsExcludeStaff(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2024, time.January, 24, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users\s+WHERE role NOT IN \('PT', 'Admin'\) AND created_at >= \$1`).
		WithArgs(since, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "amount", "created_at"}).
			AddRow("c9", "Hoa Le", "hoa@example.com", nil, since.Add(time.Hour)))

	events, err := store.RecentEvents(context.Background(), fitness.FeedRegistration, since, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "New account registered with hoa@example.com", events[0].Detail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_RecentEvents_TransactionAmount(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2024, time.January, 24, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM transactions t`).
		WithArgs(since, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "payment_method", "amount", "created_at"}).
			AddRow("7", "Linh Tran", "MoMo", 49.9, since.Add(time.Hour)))

	events, err := store.RecentEvents(context.Background(), fitness.FeedTransaction, since, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Amount)
	assert.Equal(t, 49.9, *events[0].Amount)
	assert.Equal(t, "Paid 49.90 via MoMo", events[0].Detail)
}

func TestStatsStore_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM bookings`).WillReturnError(boom)

	_, err := store.Bookings(context.Background(), january())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Bookings")
}

func TestStatsStore_ContextCancelled(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM ratings`).WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pt_id", "client_id", "score", "created_at"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Ratings(ctx, january())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
