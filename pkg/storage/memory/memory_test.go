package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitmatch/insights/pkg/fitness"
	"github.com/fitmatch/insights/pkg/statistics"
	"github.com/fitmatch/insights/pkg/storage/memory"
)

var _ statistics.Store = (*memory.Store)(nil)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() memory.Dataset {
	return memory.Dataset{
		Users: []fitness.User{
			{ID: "c1", FullName: "Client One", Role: fitness.RoleClient, CreatedAt: day(time.January, 1)},
			{ID: "c2", FullName: "Client Two", Role: "", CreatedAt: day(time.January, 15)},
			{ID: "pt1", FullName: "Trainer", Role: fitness.RolePT, CreatedAt: day(time.January, 1)},
			{ID: "a1", FullName: "Admin", Role: fitness.RoleAdmin, CreatedAt: day(time.January, 1)},
		},
		AppUsage: []fitness.AppUsageEvent{
			{ID: 1, UserID: "c1", Action: "open", Feature: "dashboard", OccurredAt: day(time.January, 20).Add(10 * time.Hour)},
			{ID: 2, UserID: "pt1", Action: "open", Feature: "dashboard", OccurredAt: day(time.January, 20)},
			{ID: 3, UserID: "", Action: "open", Feature: "dashboard", OccurredAt: day(time.January, 20)},
		},
		WorkoutLogs: []fitness.WorkoutLog{
			{ID: 1, UserID: "c2", LogDate: day(time.January, 21), ExerciseName: "Squat", Completed: true},
			{ID: 2, UserID: "c1", LogDate: day(time.January, 22), ExerciseName: "Run", Completed: false},
		},
		Foods: []fitness.Food{{ID: 9, Name: "Pho", CreatedAt: day(time.January, 1)}},
		NutritionLogs: []fitness.NutritionLog{
			{ID: 1, UserID: "c1", LogDate: day(time.January, 25), FoodID: ptr(int64(9)), Calories: 450},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestStore_ActiveUserIDs_PopulationAndNulls(t *testing.T) {
	store := memory.New(fixture())
	ctx := context.Background()
	w := fitness.DayWindow(day(time.January, 1), day(time.January, 31))

	ids, err := store.ActiveUserIDs(ctx, fitness.SourceAppUsage, w, fitness.PopulationClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	ids, err = store.ActiveUserIDs(ctx, fitness.SourceAppUsage, w, fitness.PopulationAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "pt1"}, ids)
}

func TestStore_WorkoutSourceCountsCompletionsOnly(t *testing.T) {
	store := memory.New(fixture())
	w := fitness.DayWindow(day(time.January, 1), day(time.January, 31))

	ids, err := store.ActiveUserIDs(context.Background(), fitness.SourceWorkout, w, fitness.PopulationClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)
}

func TestStore_Users(t *testing.T) {
	store := memory.New(fixture())

	clients, err := store.Users(context.Background(), fitness.PopulationClients)
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	n, err := store.CountUsers(context.Background(), fitness.PopulationTrainers, fitness.AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_NutritionLogsResolveFoodNames(t *testing.T) {
	store := memory.New(fixture())

	logs, err := store.NutritionLogs(context.Background(), fitness.AllTime(), fitness.PopulationClients)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].FoodName)
	assert.Equal(t, "Pho", *logs[0].FoodName)
}

func TestStore_RecentEvents(t *testing.T) {
	store := memory.New(fixture())
	since := day(time.January, 20)

	foods, err := store.RecentEvents(context.Background(), fitness.FeedFood, since, 5)
	require.NoError(t, err)
	require.Len(t, foods, 1)
	assert.Equal(t, fitness.FeedFood, foods[0].Kind)
	assert.Equal(t, "9", foods[0].SourceID)

	regs, err := store.RecentEvents(context.Background(), fitness.FeedRegistration, day(time.January, 10), 5)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "c2", regs[0].SourceID)

	_, err = store.RecentEvents(context.Background(), fitness.FeedKind("unknown"), since, 5)
	assert.Error(t, err)
}

func TestStore_CountEntities(t *testing.T) {
	store := memory.New(fixture())

	n, err := store.CountEntities(context.Background(), fitness.EntityAppEvents, fitness.AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.CountEntities(context.Background(), fitness.EntityUsers, fitness.DayWindow(day(time.January, 10), day(time.January, 20)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_HonorsCancellation(t *testing.T) {
	store := memory.New(fixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Users(ctx, fitness.PopulationAll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	raw := `{
		"users": [{"id": "c1", "full_name": "Client One", "role": "Client", "created_at": "2024-01-01T00:00:00Z"}],
		"transactions": [{"id": 1, "user_id": "c1", "amount": 20, "status": "Completed", "payment_method": "ZaloPay", "created_at": "2024-01-02T08:00:00Z"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	store, err := memory.Load(path)
	require.NoError(t, err)

	revenue, err := store.CompletedRevenue(context.Background(), fitness.AllTime())
	require.NoError(t, err)
	assert.Equal(t, 20.0, revenue)

	_, err = memory.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
