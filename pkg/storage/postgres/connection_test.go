package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitmatch/insights/pkg/storage"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single URL",
			input:    "postgres://replica:5432/fitness",
			expected: []string{"postgres://replica:5432/fitness"},
		},
		{
			name:  "URLs with whitespace and empty entries",
			input: " postgres://r1:5432/fitness , ,postgres://r2:5432/fitness,",
			expected: []string{
				"postgres://r1:5432/fitness",
				"postgres://r2:5432/fitness",
			},
		},
		{
			name:     "only commas and whitespace",
			input:    " , , ",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ConnectionConfig
		wantErr string
	}{
		{"valid", ConnectionConfig{PrimaryURL: "postgres://db", MaxConns: 25, MinConns: 5}, ""},
		{"min equals max", ConnectionConfig{PrimaryURL: "postgres://db", MaxConns: 10, MinConns: 10}, ""},
		{"missing URL", ConnectionConfig{MaxConns: 10}, "primary URL"},
		{"zero max", ConnectionConfig{PrimaryURL: "postgres://db", MinConns: 5}, "max connections"},
		{"min exceeds max", ConnectionConfig{PrimaryURL: "postgres://db", MaxConns: 10, MinConns: 20}, "min connections"},
		{"negative min", ConnectionConfig{PrimaryURL: "postgres://db", MaxConns: 10, MinConns: -1}, "min connections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConnectionConfigFromStorage(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.PostgresURL = "postgres://primary:5432/fitness"
	cfg.PostgresReplicaURLs = "postgres://r1:5432/fitness, postgres://r2:5432/fitness"

	cc := ConnectionConfigFromStorage(cfg)
	assert.Equal(t, "postgres://primary:5432/fitness", cc.PrimaryURL)
	assert.Equal(t, []string{"postgres://r1:5432/fitness", "postgres://r2:5432/fitness"}, cc.ReplicaURLs)
	assert.Equal(t, 20, cc.MaxConns)
	assert.Equal(t, 2, cc.MinConns)
	assert.Equal(t, 10*time.Second, cc.Timeout)
	assert.NoError(t, cc.Validate())
}

func TestConnectionConfig_ReplicaMaxConns(t *testing.T) {
	assert.Equal(t, 10, ConnectionConfig{MaxConns: 20}.replicaMaxConns())
	assert.Equal(t, 2, ConnectionConfig{MaxConns: 3}.replicaMaxConns())
}

func TestNewConnectionManager_InvalidPrimary(t *testing.T) {
	config := ConnectionConfig{
		PrimaryURL:  "postgres://nonexistent:9999/fitness?connect_timeout=1",
		MaxConns:    10,
		MinConns:    2,
		Timeout:     2 * time.Second,
		MaxLifetime: time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}

	cm, err := NewConnectionManager(config, nil)
	assert.Error(t, err)
	assert.Nil(t, cm)
	assert.True(t, strings.Contains(err.Error(), "failed to open primary connection") ||
		strings.Contains(err.Error(), "failed to ping primary"))
}

func TestConnectionManager_Replica(t *testing.T) {
	t.Run("no replicas - fallback to primary", func(t *testing.T) {
		primaryDB := &sql.DB{}
		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{}}

		assert.Equal(t, primaryDB, cm.Replica())
		assert.Equal(t, 0, cm.ReplicaCount())
	})

	t.Run("round-robin selection with multiple replicas", func(t *testing.T) {
		replica1, replica2, replica3 := &sql.DB{}, &sql.DB{}, &sql.DB{}
		cm := &ConnectionManager{
			primary:  &sql.DB{},
			replicas: []*sql.DB{replica1, replica2, replica3},
		}

		selections := make(map[*sql.DB]int)
		for i := 0; i < 30; i++ {
			selections[cm.Replica()]++
		}
		assert.Equal(t, 10, selections[replica1])
		assert.Equal(t, 10, selections[replica2])
		assert.Equal(t, 10, selections[replica3])
	})

	t.Run("concurrent replica selection", func(t *testing.T) {
		replica1, replica2 := &sql.DB{}, &sql.DB{}
		cm := &ConnectionManager{
			primary:  &sql.DB{},
			replicas: []*sql.DB{replica1, replica2},
		}

		var wg sync.WaitGroup
		results := make(chan *sql.DB, 100)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- cm.Replica()
			}()
		}
		wg.Wait()
		close(results)

		selections := make(map[*sql.DB]int)
		for replica := range results {
			selections[replica]++
		}
		assert.NotZero(t, selections[replica1])
		assert.NotZero(t, selections[replica2])
		assert.Equal(t, 100, selections[replica1]+selections[replica2])
	})
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	t.Run("healthy primary and replicas", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing()

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		assert.NoError(t, cm.HealthCheck(context.Background()))
		assert.NoError(t, primaryMock.ExpectationsWereMet())
		assert.NoError(t, replicaMock.ExpectationsWereMet())
	})

	t.Run("unhealthy primary", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()

		primaryMock.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{}}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("all replicas unhealthy", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing().WillReturnError(errors.New("timeout"))

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all replicas unhealthy: replica-0")
	})
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	healthyDB, healthyMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer healthyDB.Close()
	brokenDB, brokenMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	healthyMock.ExpectPing()
	brokenMock.ExpectPing().WillReturnError(errors.New("gone"))
	brokenMock.ExpectClose()

	cm := &ConnectionManager{primary: &sql.DB{}, replicas: []*sql.DB{healthyDB, brokenDB}}
	removed := cm.RemoveUnhealthyReplicas(context.Background())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cm.ReplicaCount())
	assert.Equal(t, healthyDB, cm.Replica())
	assert.NoError(t, brokenMock.ExpectationsWereMet())
}

func TestConnectionManager_Close(t *testing.T) {
	primaryDB, primaryMock, err := sqlmock.New()
	require.NoError(t, err)
	replicaDB, replicaMock, err := sqlmock.New()
	require.NoError(t, err)

	primaryMock.ExpectClose()
	replicaMock.ExpectClose()

	cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
	assert.NoError(t, cm.Close())
	assert.Equal(t, 0, cm.ReplicaCount())
	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}

func TestConnectionManager_Stats(t *testing.T) {
	primaryDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer primaryDB.Close()
	replicaDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer replicaDB.Close()

	cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
	stats := cm.Stats()
	assert.Len(t, stats.Replicas, 1)
}
