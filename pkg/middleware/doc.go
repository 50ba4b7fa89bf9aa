// Package middleware provides HTTP rate limiting for the report endpoints.
//
// RateLimiter keeps a token bucket per client IP in an LRU table and suits a
// single instance. DistributedRateLimiter keeps a fixed-window counter in
// Redis so several instances share one allowance:
//
//	limiter, err := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	router.Use(middleware.NewRateLimitMiddleware(limiter, "local", metrics).Handler)
//
// Both limiters report Result headers (X-RateLimit-Limit, -Remaining,
// -Reset) and reject with 429 and Retry-After once the allowance is spent.
// When Redis is unreachable requests are let through unless SetFailOpen(false).
package middleware
