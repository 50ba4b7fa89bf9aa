// Package app wires configuration into the stores, archives and services
// shared by the insights binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fitmatch/insights/pkg/config"
	"github.com/fitmatch/insights/pkg/middleware"
	"github.com/fitmatch/insights/pkg/observability"
	"github.com/fitmatch/insights/pkg/statistics"
	"github.com/fitmatch/insights/pkg/storage"
	"github.com/fitmatch/insights/pkg/storage/blob"
	"github.com/fitmatch/insights/pkg/storage/memory"
	"github.com/fitmatch/insights/pkg/storage/postgres"
)

// Dependencies holds the opened backing services
type Dependencies struct {
	Store statistics.Store
	// Conns is nil for the memory backend
	Conns *postgres.ConnectionManager
	// Redis is nil when no Redis URL is configured
	Redis *storage.RedisClient

	logger *observability.Logger
}

// Open connects to the configured statistics store and, when a Redis URL
// is set, to Redis
func Open(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{logger: logger}

	switch cfg.Storage.Type {
	case "memory":
		store, err := memory.Load(cfg.Storage.MemoryFixture)
		if err != nil {
			return nil, err
		}
		deps.Store = store
		logger.WithField("fixture", cfg.Storage.MemoryFixture).Info("using in-memory statistics store")
	case "postgres":
		conns, err := postgres.NewConnectionManager(postgres.ConnectionConfigFromStorage(cfg.Storage), logger)
		if err != nil {
			return nil, err
		}
		if err := conns.HealthCheck(ctx); err != nil {
			conns.Close()
			return nil, fmt.Errorf("database unavailable: %w", err)
		}
		deps.Conns = conns
		deps.Store = postgres.NewStatsStore(conns)
		logger.WithField("replicas", conns.ReplicaCount()).Info("connected to PostgreSQL")
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	if cfg.Storage.RedisURL != "" {
		client, err := storage.NewRedisClient(cfg.Storage)
		if err != nil {
			deps.Close(ctx)
			return nil, err
		}
		deps.Redis = client
		logger.Info("connected to Redis")
	}

	return deps, nil
}

// DB returns the primary database handle, or nil for the memory backend
func (d *Dependencies) DB() *sql.DB {
	if d.Conns == nil {
		return nil
	}
	return d.Conns.Primary()
}

// RedisClient returns the raw Redis client, or nil when Redis is not configured
func (d *Dependencies) RedisClient() *redis.Client {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Client()
}

// RecordPoolStats publishes database and Redis pool gauges
func (d *Dependencies) RecordPoolStats(m *observability.Metrics) {
	if d.Conns != nil {
		stats := d.Conns.Stats()
		m.RecordDBStats("primary", stats.Primary)
		for i, replica := range stats.Replicas {
			m.RecordDBStats(fmt.Sprintf("replica-%d", i), replica)
		}
	}
	if d.Redis != nil {
		if ps := d.Redis.PoolStats(); ps != nil {
			m.RecordRedisPool(ps.TotalConns, ps.IdleConns)
		}
	}
}

// StartPoolStatsLoop records pool gauges every interval until ctx is done
func (d *Dependencies) StartPoolStatsLoop(ctx context.Context, m *observability.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(d.logger, "pool stats loop")

		d.RecordPoolStats(m)
		for {
			select {
			case <-ticker.C:
				d.RecordPoolStats(m)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close releases every connection
func (d *Dependencies) Close(_ context.Context) error {
	var errs []error
	if d.Conns != nil {
		if err := d.Conns.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewService builds the statistics service from configuration
func NewService(cfg *config.Config, store statistics.Store, logger *observability.Logger, recorder statistics.Recorder) (*statistics.Service, error) {
	rule, err := statistics.ParseLockedRule(cfg.Statistics.LockedRule)
	if err != nil {
		return nil, err
	}
	return statistics.NewService(store, logger,
		statistics.WithConcurrency(cfg.Statistics.Concurrency),
		statistics.WithLockedRule(rule),
		statistics.WithRecorder(recorder),
	), nil
}

// OpenArchive opens the configured report archive and returns it with its
// backend name
func OpenArchive(ctx context.Context, cfg storage.Config) (storage.ReportArchive, string, error) {
	switch cfg.ArchiveType {
	case "filesystem":
		archive, err := storage.NewFileSystemArchive(cfg.FilesystemRoot)
		return archive, cfg.ArchiveType, err
	case "s3":
		archive, err := blob.NewS3Archive(ctx, cfg)
		return archive, cfg.ArchiveType, err
	default:
		return nil, "", fmt.Errorf("unknown archive type %q", cfg.ArchiveType)
	}
}

// NewRateLimit builds the report rate limiter, or returns nil when rate
// limiting is disabled. Distributed limiting requires redisClient.
func NewRateLimit(cfg config.RateLimitConfig, redisClient *storage.RedisClient, metrics *observability.Metrics) (*middleware.RateLimitMiddleware, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Burst,
		MaxClients:        cfg.MaxClients,
	}

	if cfg.Distributed {
		if redisClient == nil {
			return nil, errors.New("distributed rate limiting requires redis")
		}
		limiter := middleware.NewDistributedRateLimiter(redisClient.Client(), limits, "")
		return middleware.NewRateLimitMiddleware(limiter, "redis", metrics), nil
	}

	limiter, err := middleware.NewRateLimiter(limits)
	if err != nil {
		return nil, err
	}
	return middleware.NewRateLimitMiddleware(limiter, "local", metrics), nil
}
