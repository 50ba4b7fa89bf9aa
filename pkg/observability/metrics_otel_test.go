package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) *metric.ManualReader {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	})
	return reader
}

func collectSum(t *testing.T, reader *metric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestOTelMetrics_ObserveReport(t *testing.T) {
	reader := setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	m.ObserveReport("overview", "ok", 10*time.Millisecond)
	m.ObserveReport("overview", "cancelled", time.Millisecond)

	if got := collectSum(t, reader, "insights.reports"); got != 2 {
		t.Errorf("insights.reports = %d, want 2", got)
	}
}

func TestOTelMetrics_RecordArchiveOperation(t *testing.T) {
	reader := setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordArchiveOperation(ctx, "put", "s3", 50*time.Millisecond, 2048, nil)
	m.RecordArchiveOperation(ctx, "put", "s3", 50*time.Millisecond, 0, errors.New("timeout"))

	if got := collectSum(t, reader, "insights.archive.operations"); got != 2 {
		t.Errorf("insights.archive.operations = %d, want 2", got)
	}
}

type countingObserver struct{ calls int }

func (c *countingObserver) ObserveReport(string, string, time.Duration) { c.calls++ }

func TestReportObservers_FanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	observers := ReportObservers{a, nil, b}

	observers.ObserveReport("finance", "ok", time.Second)

	if a.calls != 1 || b.calls != 1 {
		t.Errorf("Expected each observer to be called once, got %d and %d", a.calls, b.calls)
	}
}
