package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Take(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	}, "")

	for i := 0; i < 3; i++ {
		res, err := limiter.Take(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.Take(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.Reset)

	assert.True(t, mr.Exists("insights:ratelimit:ip:1.2.3.4"))
	assert.Equal(t, time.Minute, mr.TTL("insights:ratelimit:ip:1.2.3.4"))

	// The window does not slide with each request.
	mr.FastForward(30 * time.Second)
	_, err = limiter.Take(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("insights:ratelimit:ip:1.2.3.4"))

	mr.FastForward(31 * time.Second)
	res, err = limiter.Take(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestDistributedRateLimiter_RemainingAndReset(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}, "test")

	remaining, err := limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Take(ctx, "k")
	require.NoError(t, err)
	remaining, err = limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	require.NoError(t, limiter.Reset(ctx, "k"))
	remaining, err = limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	assert.NoError(t, limiter.HealthCheck(ctx))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewDistributedRateLimiter(client, nil, "")
	mr.Close()

	_, err := limiter.Take(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, limiter.HealthCheck(context.Background()))

	// Fails open through the middleware.
	handler := NewRateLimitMiddleware(limiter, "redis", nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
