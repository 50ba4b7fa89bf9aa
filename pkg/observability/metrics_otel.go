package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the report and archive metrics onto the global
// OpenTelemetry meter provider
type OTelMetrics struct {
	reportsTotal   metric.Int64Counter
	reportDuration metric.Float64Histogram

	archiveOperations metric.Int64Counter
	archiveDuration   metric.Float64Histogram
	archiveBytes      metric.Int64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/fitmatch/insights")

	m := &OTelMetrics{}
	var err error

	m.reportsTotal, err = meter.Int64Counter(
		"insights.reports",
		metric.WithDescription("Statistics reports computed"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reports counter: %w", err)
	}

	m.reportDuration, err = meter.Float64Histogram(
		"insights.report.duration",
		metric.WithDescription("Time spent computing a statistics report"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report duration histogram: %w", err)
	}

	m.archiveOperations, err = meter.Int64Counter(
		"insights.archive.operations",
		metric.WithDescription("Report archive operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive operations counter: %w", err)
	}

	m.archiveDuration, err = meter.Float64Histogram(
		"insights.archive.duration",
		metric.WithDescription("Report archive operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive duration histogram: %w", err)
	}

	m.archiveBytes, err = meter.Int64Histogram(
		"insights.archive.bytes",
		metric.WithDescription("Bytes written to the report archive"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive bytes histogram: %w", err)
	}

	return m, nil
}

// ObserveReport records one report computation
func (m *OTelMetrics) ObserveReport(report, outcome string, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("report", report),
		attribute.String("outcome", outcome),
	)
	m.reportsTotal.Add(ctx, 1, attrs)
	m.reportDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordArchiveOperation records one read or write against the report archive
func (m *OTelMetrics) RecordArchiveOperation(ctx context.Context, operation, backend string, duration time.Duration, bytes int64, err error) {
	attrs := metric.WithAttributes(
		attribute.String("archive.operation", operation),
		attribute.String("archive.backend", backend),
		attribute.Bool("error", err != nil),
	)

	m.archiveOperations.Add(ctx, 1, attrs)
	m.archiveDuration.Record(ctx, duration.Seconds(), attrs)
	if bytes > 0 {
		m.archiveBytes.Record(ctx, bytes, attrs)
	}
}

// ReportObserver is anything that records report computations
type ReportObserver interface {
	ObserveReport(report, outcome string, d time.Duration)
}

// ReportObservers fans a report observation out to several observers
type ReportObservers []ReportObserver

// ObserveReport forwards the observation to every non-nil observer
func (o ReportObservers) ObserveReport(report, outcome string, d time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveReport(report, outcome, d)
		}
	}
}
