package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insights"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec

	// Report metrics
	ReportsTotal   *prometheus.CounterVec
	ReportDuration *prometheus.HistogramVec

	// Export metrics
	ExportsTotal      *prometheus.CounterVec
	ExportBytes       prometheus.Histogram
	ExportLastSuccess prometheus.Gauge

	// Database metrics, labelled by pool ("primary" or "replica-N")
	DBConnectionsOpen   *prometheus.GaugeVec
	DBConnectionsInUse  *prometheus.GaugeVec
	DBConnectionsIdle   *prometheus.GaugeVec
	DBConnectionsWaited *prometheus.GaugeVec

	// Redis metrics
	RedisConnectionsTotal prometheus.Gauge
	RedisConnectionsIdle  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),

		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Statistics reports computed, by outcome",
			},
			[]string{"report", "outcome"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_seconds",
				Help:      "Time spent computing a statistics report",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"report"},
		),

		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Daily report exports, by status",
			},
			[]string{"status"},
		),
		ExportBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_size_bytes",
				Help:      "Size of archived reports",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		ExportLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "export_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful export",
			},
		),

		DBConnectionsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Number of open database connections",
			},
			[]string{"pool"},
		),
		DBConnectionsInUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections in use",
			},
			[]string{"pool"},
		),
		DBConnectionsIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
			[]string{"pool"},
		),
		DBConnectionsWaited: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_wait_count",
				Help:      "Total number of connections waited for",
			},
			[]string{"pool"},
		),

		RedisConnectionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_connections_total",
				Help:      "Number of connections in the Redis pool",
			},
		),
		RedisConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_connections_idle",
				Help:      "Number of idle connections in the Redis pool",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.RateLimitedTotal,
		m.ReportsTotal,
		m.ReportDuration,
		m.ExportsTotal,
		m.ExportBytes,
		m.ExportLastSuccess,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaited,
		m.RedisConnectionsTotal,
		m.RedisConnectionsIdle,
	)

	return m
}

// ObserveReport records one report computation
func (m *Metrics) ObserveReport(report, outcome string, d time.Duration) {
	m.ReportsTotal.WithLabelValues(report, outcome).Inc()
	m.ReportDuration.WithLabelValues(report).Observe(d.Seconds())
}

// ObserveExport records one archive write attempt
func (m *Metrics) ObserveExport(status string, size int, at time.Time) {
	m.ExportsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.ExportBytes.Observe(float64(size))
		m.ExportLastSuccess.Set(float64(at.Unix()))
	}
}

// RecordDBStats publishes connection pool statistics for one pool
func (m *Metrics) RecordDBStats(pool string, stats sql.DBStats) {
	m.DBConnectionsOpen.WithLabelValues(pool).Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.WithLabelValues(pool).Set(float64(stats.InUse))
	m.DBConnectionsIdle.WithLabelValues(pool).Set(float64(stats.Idle))
	m.DBConnectionsWaited.WithLabelValues(pool).Set(float64(stats.WaitCount))
}

// RecordRedisPool publishes Redis pool statistics
func (m *Metrics) RecordRedisPool(total, idle uint32) {
	m.RedisConnectionsTotal.Set(float64(total))
	m.RedisConnectionsIdle.Set(float64(idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched mux route template, or the raw path when
// the request did not go through a router
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
