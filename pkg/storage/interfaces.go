package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

// ErrNotFound is returned by archives when no report exists under a key
var ErrNotFound = errors.New("report not found")

// ReportArchive stores computed report snapshots
type ReportArchive interface {
	// PutReport stores body under key, replacing any previous snapshot
	PutReport(ctx context.Context, key string, body []byte, contentType string) error
	// GetReport opens the snapshot stored under key
	GetReport(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists reports whether a snapshot is stored under key
	Exists(ctx context.Context, key string) (bool, error)
	// HealthCheck verifies the archive is reachable
	HealthCheck(ctx context.Context) error
}

// ArchiveKey returns the key of the daily snapshot for day, e.g.
// reports/daily/2024/01/31.json
func ArchiveKey(day time.Time, ext string) string {
	day = day.UTC()
	return path.Join("reports", "daily",
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d.%s", day.Day(), ext))
}

// Config for storage backends
type Config struct {
	Type string `yaml:"type"` // "postgres" or "memory"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs string        `yaml:"postgres_replica_urls"` // comma separated
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// Fixture used by the memory backend
	MemoryFixture string `yaml:"memory_fixture"`

	// Report archive config
	ArchiveType    string `yaml:"archive_type"` // "filesystem" or "s3"
	FilesystemRoot string `yaml:"filesystem_root"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "postgres",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		ArchiveType:      "filesystem",
		FilesystemRoot:   "/var/lib/insights",
		S3Region:         "us-east-1",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
	}
}

// Validate checks that the selected backends are fully configured
func (c Config) Validate() error {
	switch c.Type {
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("postgres storage requires a database URL")
		}
		if c.PostgresMaxConns < 1 {
			return fmt.Errorf("postgres max connections must be at least 1, got %d", c.PostgresMaxConns)
		}
		if c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)", c.PostgresMinConns, c.PostgresMaxConns)
		}
	case "memory":
		if c.MemoryFixture == "" {
			return errors.New("memory storage requires a fixture file")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}

	switch c.ArchiveType {
	case "filesystem":
		if c.FilesystemRoot == "" {
			return errors.New("filesystem archive requires a root directory")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3 archive requires a bucket")
		}
	default:
		return fmt.Errorf("unknown archive type %q", c.ArchiveType)
	}
	return nil
}
