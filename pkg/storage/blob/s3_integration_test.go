//go:build integration

package blob

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fitmatch/insights/pkg/storage"
)

// setupMinIO starts a MinIO container and returns an archive backed by it
func setupMinIO(t *testing.T) *S3Archive {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start MinIO container")
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.ArchiveType = "s3"
	cfg.S3Endpoint = "http://" + host + ":" + port.Port()
	cfg.S3AccessKey = "minioadmin"
	cfg.S3SecretKey = "minioadmin"
	cfg.S3Bucket = "insights-reports"
	cfg.S3UsePathStyle = true

	archive, err := NewS3Archive(ctx, cfg)
	require.NoError(t, err)
	return archive
}

func TestS3Archive_Integration(t *testing.T) {
	archive := setupMinIO(t)
	ctx := context.Background()
	key := "reports/daily/2024/01/31.json"

	require.NoError(t, archive.HealthCheck(ctx))

	exists, err := archive.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = archive.GetReport(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, archive.PutReport(ctx, key, []byte(`{"from":"2024-01-31"}`), "application/json"))

	exists, err = archive.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := archive.GetReport(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"from":"2024-01-31"}`, string(body))
}
