package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitmatch/insights/pkg/observability"
)

// validEnv points the loader at a minimal valid postgres setup and away
// from any .env in the package directory
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INSIGHTS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("INSIGHTS_CONFIG_FILE", "")
	t.Setenv("INSIGHTS_POSTGRES_URL", "postgres://localhost/fitness")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL_ON", "on")
	t.Setenv("TEST_BOOL_OFF", "0")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_FLOAT", "0.25")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL_ON", false))
	assert.False(t, getEnvBool("TEST_BOOL_OFF", true))
	assert.True(t, getEnvBool("TEST_BOOL_BAD", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_INT_BAD", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
}

func TestLoadConfig_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/fitness", cfg.Storage.PostgresURL)
	assert.Equal(t, 4, cfg.Statistics.Concurrency)
	assert.Equal(t, "any", cfg.Statistics.LockedRule)
	assert.Equal(t, "json", cfg.Export.Format)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Empty(t, cfg.File)
}

func TestLoadConfig_Layering(t *testing.T) {
	validEnv(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "insights.yaml", `
server:
  port: "8000"
storage:
  postgres_timeout: 3s
  archive_type: s3
  s3_bucket: reports
statistics:
  concurrency: 2
  locked_rule: exclusive
observability:
  log_level: warn
`)
	t.Setenv("INSIGHTS_CONFIG_FILE", path)
	t.Setenv("INSIGHTS_REPORT_CONCURRENCY", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "8000", cfg.Server.Port, "file overrides default")
	assert.Equal(t, "9090", cfg.Server.HealthPort, "defaults survive a partial file")
	assert.Equal(t, 3*time.Second, cfg.Storage.PostgresTimeout)
	assert.Equal(t, "s3", cfg.Storage.ArchiveType)
	assert.Equal(t, 8, cfg.Statistics.Concurrency, "environment overrides file")
	assert.Equal(t, "exclusive", cfg.Statistics.LockedRule)
	assert.Equal(t, observability.WarnLevel, cfg.Observability.Level())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	validEnv(t)
	envFile := writeFile(t, t.TempDir(), ".env", "INSIGHTS_PORT=7000\nINSIGHTS_LOG_LEVEL=debug\n")
	t.Setenv("INSIGHTS_ENV_FILE", envFile)
	t.Setenv("INSIGHTS_LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("INSIGHTS_PORT") })

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, observability.ErrorLevel, cfg.Observability.Level(), ".env never overrides the real environment")
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		validEnv(t)
		t.Setenv("INSIGHTS_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		validEnv(t)
		t.Setenv("INSIGHTS_CONFIG_FILE", writeFile(t, t.TempDir(), "bad.yaml", "server: [unterminated"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		validEnv(t)
		t.Setenv("INSIGHTS_LOCKED_RULE", "xor")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "configuration validation failed")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Storage.PostgresURL = "postgres://localhost/fitness"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }, "must be different"},
		{"storage", func(c *Config) { c.Storage.PostgresURL = "" }, "storage:"},
		{"concurrency", func(c *Config) { c.Statistics.Concurrency = 0 }, "concurrency"},
		{"rate limit", func(c *Config) { c.RateLimit.Burst = 0 }, "rate limit"},
		{"rate limit disabled ignores values", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.Burst = 0
		}, ""},
		{"distributed without redis", func(c *Config) { c.RateLimit.Distributed = true }, "Redis URL"},
		{"export format", func(c *Config) { c.Export.Format = "csv" }, "export format"},
		{"export schedule", func(c *Config) { c.Export.Schedule = "every day" }, "export schedule"},
		{"log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "unknown log level"},
		{"otel endpoint", func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.Endpoint = ""
		}, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWatchLogLevel(t *testing.T) {
	t.Setenv("INSIGHTS_LOG_LEVEL", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "insights.yaml", "observability:\n  log_level: info\n")

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, WatchLogLevel(ctx, path, logger))

	writeFile(t, dir, "insights.yaml", "observability:\n  log_level: debug\n")

	assert.Eventually(t, func() bool {
		return logger.Level() == observability.DebugLevel
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReloadLogLevel_EnvironmentWins(t *testing.T) {
	t.Setenv("INSIGHTS_LOG_LEVEL", "error")
	path := writeFile(t, t.TempDir(), "insights.yaml", "observability:\n  log_level: debug\n")
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})

	reloadLogLevel(path, logger)
	assert.Equal(t, observability.InfoLevel, logger.Level())
}

func TestReloadLogLevel_IgnoresInvalidFile(t *testing.T) {
	t.Setenv("INSIGHTS_LOG_LEVEL", "")
	path := writeFile(t, t.TempDir(), "insights.yaml", "observability:\n  log_level: loud\n")
	logger := observability.NewLogger(observability.WarnLevel, &bytes.Buffer{})

	reloadLogLevel(path, logger)
	assert.Equal(t, observability.WarnLevel, logger.Level())
}
