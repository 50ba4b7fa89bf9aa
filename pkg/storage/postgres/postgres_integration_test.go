//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fitmatch/insights/pkg/fitness"
	"github.com/fitmatch/insights/pkg/statistics"
	"github.com/fitmatch/insights/pkg/storage"
)

// setupPostgresTestDB starts PostgreSQL with the fitness schema and seeds a
// small dataset
func setupPostgresTestDB(t *testing.T) *ConnectionManager {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("fitness_test"),
		tcpostgres.WithUsername("insights"),
		tcpostgres.WithPassword("insights"),
		tcpostgres.WithInitScripts(filepath.Join("..", "..", "..", "migrations", "001_fitness_schema.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.PostgresURL = connStr
	// The primary doubles as a replica so report reads exercise replica routing.
	cfg.PostgresReplicaURLs = connStr

	cm, err := NewConnectionManager(ConnectionConfigFromStorage(cfg), nil)
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	seed := []string{
		`INSERT INTO users (id, full_name, email, role, created_at) VALUES
			('c1', 'Client One', 'c1@example.com', 'Client', '2024-01-01T08:00:00Z'),
			('c2', 'Client Two', NULL, 'Client', '2024-01-15T08:00:00Z'),
			('pt1', 'Coach', 'pt@example.com', 'PT', '2024-01-01T08:00:00Z')`,
		`INSERT INTO app_usage_logs (user_id, action, feature, occurred_at) VALUES
			('c1', 'open', 'dashboard', '2024-01-20T09:00:00Z'),
			('pt1', 'open', 'dashboard', '2024-01-20T09:00:00Z'),
			(NULL, 'open', 'dashboard', '2024-01-20T09:00:00Z')`,
		`INSERT INTO workout_logs (user_id, log_date, exercise_name, duration_minutes, completed) VALUES
			('c2', '2024-01-22', 'Squat', 30, FALSE)`,
		`INSERT INTO transactions (user_id, amount, status, payment_method, created_at) VALUES
			('c1', 100, 'Completed', 'MoMo', '2024-01-10T10:00:00Z'),
			('c1', 50, 'Failed', 'MoMo', '2024-01-11T10:00:00Z')`,
	}
	for _, q := range seed {
		_, err := cm.Primary().ExecContext(ctx, q)
		require.NoError(t, err)
	}
	return cm
}

func TestStatsStore_Integration(t *testing.T) {
	cm := setupPostgresTestDB(t)
	store := NewStatsStore(cm)
	ctx := context.Background()
	jan := fitness.DayWindow(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	)

	require.Equal(t, 1, cm.ReplicaCount())
	require.NoError(t, cm.HealthCheck(ctx))

	ids, err := store.ActiveUserIDs(ctx, fitness.SourceAppUsage, jan, fitness.PopulationClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	// Unfinished workouts are not activity.
	ids, err = store.ActiveUserIDs(ctx, fitness.SourceWorkout, jan, fitness.PopulationClients)
	require.NoError(t, err)
	assert.Empty(t, ids)

	revenue, err := store.CompletedRevenue(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, 100.0, revenue)

	n, err := store.CountEntities(ctx, fitness.EntityUsers, fitness.AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	events, err := store.RecentEvents(ctx, fitness.FeedRegistration, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c2", events[0].SourceID)
}

func TestStatistics_Integration(t *testing.T) {
	cm := setupPostgresTestDB(t)
	now := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	svc := statistics.NewService(NewStatsStore(cm), nil,
		statistics.WithClock(func() time.Time { return now }))

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	users, err := svc.GetUserAnalytics(context.Background(), &from, &to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), users.TotalUsers)
	assert.Equal(t, int64(1), users.ActiveUsersInRange)
	assert.Equal(t, int64(2), users.NewRegistrationsInRange)
	assert.Equal(t, users.TotalUsers, users.AccountStatus.Total())

	report, err := svc.GetStatisticsData(context.Background(), &from, &to)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.Finance.TotalRevenue)
	assert.Equal(t, int64(1), report.Overview.ActiveUsers)
	assert.NotNil(t, report.RecentActivities)
}
