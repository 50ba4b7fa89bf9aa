package observability

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	metrics.ObserveReport("overview", "ok", time.Second)
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "insights_reports_total" {
			found = true
		}
	}
	if !found {
		t.Error("insights_reports_total not registered")
	}
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_ObserveReport(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveReport("finance", "ok", 200*time.Millisecond)
	metrics.ObserveReport("finance", "ok", 300*time.Millisecond)
	metrics.ObserveReport("finance", "error", time.Millisecond)

	if got := testutil.ToFloat64(metrics.ReportsTotal.WithLabelValues("finance", "ok")); got != 2 {
		t.Errorf("Expected 2 ok reports, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ReportsTotal.WithLabelValues("finance", "error")); got != 1 {
		t.Errorf("Expected 1 failed report, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.ReportDuration); got != 1 {
		t.Errorf("Expected one duration series, got %d", got)
	}
}

func TestMetrics_ObserveExport(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	at := time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)

	metrics.ObserveExport("error", 0, at)
	if got := testutil.ToFloat64(metrics.ExportLastSuccess); got != 0 {
		t.Errorf("Failed export must not move the success timestamp, got %v", got)
	}

	metrics.ObserveExport("ok", 4096, at)
	if got := testutil.ToFloat64(metrics.ExportLastSuccess); got != float64(at.Unix()) {
		t.Errorf("Expected timestamp %d, got %v", at.Unix(), got)
	}
	if got := testutil.ToFloat64(metrics.ExportsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("Expected 1 ok export, got %v", got)
	}
}

func TestMetrics_RecordPools(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordDBStats("primary", sql.DBStats{OpenConnections: 5, InUse: 3, Idle: 2, WaitCount: 7})
	if got := testutil.ToFloat64(metrics.DBConnectionsInUse.WithLabelValues("primary")); got != 3 {
		t.Errorf("Expected 3 in use, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsWaited.WithLabelValues("primary")); got != 7 {
		t.Errorf("Expected wait count 7, got %v", got)
	}

	metrics.RecordRedisPool(10, 4)
	if got := testutil.ToFloat64(metrics.RedisConnectionsIdle); got != 4 {
		t.Errorf("Expected 4 idle redis connections, got %v", got)
	}
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/reports/{day}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	for _, day := range []string{"2024-01-01", "2024-01-02"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+day, nil))
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/reports/{day}", "418")); got != 2 {
		t.Errorf("Expected 2 requests on the route template, got %v", got)
	}
}

func TestHTTPMetricsMiddleware_DefaultStatus(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/plain", "200")); got != 1 {
		t.Errorf("Expected 1 request with status 200, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ObserveReport("overview", "ok", time.Millisecond)

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `insights_reports_total{outcome="ok",report="overview"} 1`) {
		t.Errorf("Expected report counter in output, got:\n%s", rec.Body.String())
	}
}
