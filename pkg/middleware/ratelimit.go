package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fitmatch/insights/pkg/httputil"
	"github.com/fitmatch/insights/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// MaxClients bounds the number of buckets kept in memory
	MaxClients int
}

// DefaultRateLimitConfig returns default rate limit settings. Report
// endpoints scan whole tables, so the defaults are low.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         10,
		MaxClients:        10000,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Result is the outcome of one rate limit check
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time until the client has a full allowance again
	Reset time.Duration
}

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Take(ctx context.Context, key string) (Result, error)
}

// RateLimiter implements a per-key token bucket. Buckets live in an LRU
// table so memory stays bounded however many clients connect.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) (*RateLimiter, error) {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if config.RequestsPerWindow < 1 || config.WindowDuration <= 0 {
		return nil, fmt.Errorf("invalid rate limit: %d per %s", config.RequestsPerWindow, config.WindowDuration)
	}
	size := config.MaxClients
	if size <= 0 {
		size = DefaultRateLimitConfig().MaxClients
	}
	buckets, err := lru.New[string, *bucket](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket table: %w", err)
	}
	return &RateLimiter{config: config, buckets: buckets, now: time.Now}, nil
}

func (rl *RateLimiter) bucket(key string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: rl.config.capacity(), lastUpdate: rl.now()}
		rl.buckets.Add(key, b)
	}
	return b
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	res, _ := rl.Take(context.Background(), key)
	return res.Allowed
}

// Take consumes one token for key if one is available
func (rl *RateLimiter) Take(_ context.Context, key string) (Result, error) {
	b := rl.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)

	// Refill whole tokens and carry the remainder forward
	if elapsed := now.Sub(b.lastUpdate); elapsed >= perToken {
		add := int(elapsed / perToken)
		b.tokens += add
		b.lastUpdate = b.lastUpdate.Add(time.Duration(add) * perToken)
		if b.tokens >= rl.config.capacity() {
			b.tokens = rl.config.capacity()
			b.lastUpdate = now
		}
	}

	res := Result{Limit: rl.config.capacity()}
	if b.tokens > 0 {
		b.tokens--
		res.Allowed = true
	}
	res.Remaining = b.tokens
	res.Reset = time.Duration(rl.config.capacity()-b.tokens) * perToken
	return res, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	b, ok := rl.buckets.Peek(key)
	rl.mu.Unlock()
	if !ok {
		return rl.config.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	return rl.buckets.Len()
}

// RateLimitMiddleware rejects clients that exceed their allowance with 429
type RateLimitMiddleware struct {
	limiter  Limiter
	name     string
	metrics  *observability.Metrics
	failOpen bool
}

// NewRateLimitMiddleware wraps limiter. name labels the rejection metric;
// metrics may be nil.
func NewRateLimitMiddleware(limiter Limiter, name string, metrics *observability.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:  limiter,
		name:     name,
		metrics:  metrics,
		failOpen: true,
	}
}

// SetFailOpen controls whether to allow (true) or reject with 503 (false)
// requests when the limiter itself fails
func (m *RateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r)

		res, err := m.limiter.Take(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context()).
				WithError(err).
				WithField("limiter", m.name).
				Warn("rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceUnavailable(w, "service temporarily unavailable")
			return
		}

		setRateLimitHeaders(w, res)
		if !res.Allowed {
			if m.metrics != nil {
				m.metrics.RateLimitedTotal.WithLabelValues(m.name).Inc()
			}
			retryAfter := int(res.Reset.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.Reset).Unix(), 10))
}

// ClientIP returns the originating client address: the first hop of
// X-Forwarded-For, then X-Real-IP, then the connection's remote host
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
