package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/fitmatch/insights/pkg/observability"
	"github.com/fitmatch/insights/pkg/statistics"
	"github.com/fitmatch/insights/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Statistics    StatisticsConfig    `yaml:"statistics"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML file the configuration was read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// StatisticsConfig tunes report computation
type StatisticsConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	LockedRule     string        `yaml:"locked_rule"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RateLimitConfig configures the report endpoint rate limiter. Requests are
// limited per client IP; Distributed shares the buckets through Redis.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
	MaxClients        int  `yaml:"max_clients"`
	Distributed       bool `yaml:"distributed"`
}

// ExportConfig configures the daily report exporter
type ExportConfig struct {
	Schedule string        `yaml:"schedule"`
	Format   string        `yaml:"format"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string                   `yaml:"log_level"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Level returns the parsed log level, falling back to info
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, _ := observability.ParseLevel(o.LogLevel)
	return level
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Statistics: StatisticsConfig{
			Concurrency:    4,
			LockedRule:     string(statistics.LockedAny),
			RequestTimeout: 45 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			Burst:             10,
			MaxClients:        10000,
		},
		Export: ExportConfig{
			Schedule: "15 0 * * *",
			Format:   "json",
			LockTTL:  10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "insights",
				ServiceVersion: "dev",
				Insecure:       true,
			},
		},
	}
}

// LoadConfig builds the configuration from, in increasing precedence, the
// defaults, the YAML file named by INSIGHTS_CONFIG_FILE and the INSIGHTS_*
// environment. A .env file in the working directory (or INSIGHTS_ENV_FILE)
// is loaded into the environment first without overriding existing values.
func LoadConfig() (*Config, error) {
	envFile := getEnv("INSIGHTS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()
	if path := os.Getenv("INSIGHTS_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto c
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("INSIGHTS_HOST", s.Host)
	s.Port = getEnv("INSIGHTS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("INSIGHTS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("INSIGHTS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("INSIGHTS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("INSIGHTS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("INSIGHTS_HEALTH_PORT", s.HealthPort)

	st := &c.Storage
	st.Type = getEnv("INSIGHTS_STORAGE_TYPE", st.Type)
	st.MemoryFixture = getEnv("INSIGHTS_MEMORY_FIXTURE", st.MemoryFixture)
	st.PostgresURL = getEnv("INSIGHTS_POSTGRES_URL", st.PostgresURL)
	st.PostgresReplicaURLs = getEnv("INSIGHTS_POSTGRES_REPLICA_URLS", st.PostgresReplicaURLs)
	st.PostgresMaxConns = getEnvInt("INSIGHTS_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("INSIGHTS_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("INSIGHTS_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.ArchiveType = getEnv("INSIGHTS_ARCHIVE_TYPE", st.ArchiveType)
	st.FilesystemRoot = getEnv("INSIGHTS_FILESYSTEM_ROOT", st.FilesystemRoot)
	st.S3Endpoint = getEnv("INSIGHTS_S3_ENDPOINT", st.S3Endpoint)
	st.S3Region = getEnv("INSIGHTS_S3_REGION", st.S3Region)
	st.S3Bucket = getEnv("INSIGHTS_S3_BUCKET", st.S3Bucket)
	st.S3AccessKey = getEnv("INSIGHTS_S3_ACCESS_KEY", st.S3AccessKey)
	st.S3SecretKey = getEnv("INSIGHTS_S3_SECRET_KEY", st.S3SecretKey)
	st.S3UsePathStyle = getEnvBool("INSIGHTS_S3_USE_PATH_STYLE", st.S3UsePathStyle)
	st.RedisURL = getEnv("INSIGHTS_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("INSIGHTS_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("INSIGHTS_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("INSIGHTS_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("INSIGHTS_REDIS_POOL_SIZE", st.RedisPoolSize)

	sc := &c.Statistics
	sc.Concurrency = getEnvInt("INSIGHTS_REPORT_CONCURRENCY", sc.Concurrency)
	sc.LockedRule = getEnv("INSIGHTS_LOCKED_RULE", sc.LockedRule)
	sc.RequestTimeout = getEnvDuration("INSIGHTS_REQUEST_TIMEOUT", sc.RequestTimeout)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("INSIGHTS_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerMinute = getEnvInt("INSIGHTS_RATE_LIMIT_RPM", rl.RequestsPerMinute)
	rl.Burst = getEnvInt("INSIGHTS_RATE_LIMIT_BURST", rl.Burst)
	rl.MaxClients = getEnvInt("INSIGHTS_RATE_LIMIT_MAX_CLIENTS", rl.MaxClients)
	rl.Distributed = getEnvBool("INSIGHTS_RATE_LIMIT_DISTRIBUTED", rl.Distributed)

	ex := &c.Export
	ex.Schedule = getEnv("INSIGHTS_EXPORT_SCHEDULE", ex.Schedule)
	ex.Format = getEnv("INSIGHTS_EXPORT_FORMAT", ex.Format)
	ex.LockTTL = getEnvDuration("INSIGHTS_EXPORT_LOCK_TTL", ex.LockTTL)

	o := &c.Observability
	o.LogLevel = getEnv("INSIGHTS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("INSIGHTS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTel.Enabled = getEnvBool("INSIGHTS_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("INSIGHTS_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("INSIGHTS_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.ServiceVersion = getEnv("INSIGHTS_OTEL_SERVICE_VERSION", o.OTel.ServiceVersion)
	o.OTel.Insecure = getEnvBool("INSIGHTS_OTEL_INSECURE", o.OTel.Insecure)
	o.OTel.SampleRatio = getEnvFloat("INSIGHTS_OTEL_SAMPLE_RATIO", o.OTel.SampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Statistics.Concurrency < 1 {
		return fmt.Errorf("report concurrency must be at least 1, got %d", c.Statistics.Concurrency)
	}
	if _, err := statistics.ParseLockedRule(c.Statistics.LockedRule); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute < 1 || c.RateLimit.Burst < 1 {
			return errors.New("rate limit requires positive requests_per_minute and burst")
		}
		if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
			return errors.New("distributed rate limiting requires a Redis URL")
		}
	}

	switch c.Export.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("unknown export format %q (must be json or yaml)", c.Export.Format)
	}
	if _, err := cron.ParseStandard(c.Export.Schedule); err != nil {
		return fmt.Errorf("invalid export schedule %q: %w", c.Export.Schedule, err)
	}

	if _, err := observability.ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
