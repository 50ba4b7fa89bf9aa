package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fitmatch/insights/pkg/httputil"
	"github.com/fitmatch/insights/pkg/middleware"
	"github.com/fitmatch/insights/pkg/observability"
	"github.com/fitmatch/insights/pkg/statistics"
)

// APIPrefix is the path prefix of every statistics route
const APIPrefix = "/api/v1"

// Options configures optional server behaviour. Nil fields disable the
// corresponding middleware.
type Options struct {
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	RateLimit      *middleware.RateLimitMiddleware
	RequestTimeout time.Duration
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server over service
func NewServer(service *statistics.Service, opts Options) *Server {
	s := &Server{router: mux.NewRouter()}

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	if opts.Metrics != nil {
		api.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit.Handler)
	}
	NewStatisticsHandlers(service).RegisterRoutes(api)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "no route for "+r.URL.Path)
	})

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(opts.Logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.TimeoutMiddleware(opts.RequestTimeout),
	)(s.router)
	return s
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
