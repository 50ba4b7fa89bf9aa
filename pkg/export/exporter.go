package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/fitmatch/insights/pkg/fitness"
	"github.com/fitmatch/insights/pkg/observability"
	"github.com/fitmatch/insights/pkg/statistics"
	"github.com/fitmatch/insights/pkg/storage"
)

// Export outcomes
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusLocked  = "locked"
	StatusError   = "error"
)

// Locker serializes exports across exporter instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*storage.Lock, error)
}

// Options configures an Exporter. Nil fields are optional.
type Options struct {
	Format Format
	// Overwrite rewrites days that are already archived
	Overwrite bool
	Locker    Locker
	LockTTL   time.Duration
	// Backend labels archive operation metrics, e.g. "s3"
	Backend string
	Metrics *observability.Metrics
	OTel    *observability.OTelMetrics
	Logger  *observability.Logger
}

// Result describes the export of one day
type Result struct {
	Day    time.Time
	Key    string
	Status string
	Bytes  int
}

// Exporter writes daily composite reports to a report archive
type Exporter struct {
	service *statistics.Service
	archive storage.ReportArchive
	opts    Options
	logger  *observability.Logger
	now     func() time.Time
}

// NewExporter creates an exporter
func NewExporter(service *statistics.Service, archive storage.ReportArchive, opts Options) *Exporter {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Exporter{
		service: service,
		archive: archive,
		opts:    opts,
		logger:  logger.WithField("component", "export"),
		now:     time.Now,
	}
}

// ExportDay computes the report of the calendar day containing day and
// stores it under storage.ArchiveKey. Days already archived are skipped
// unless Overwrite is set; a day locked by another instance is left alone.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) (Result, error) {
	day = fitness.StartOfDay(day)
	res := Result{Day: day, Key: storage.ArchiveKey(day, e.opts.Format.Ext())}
	logger := e.logger.WithField("day", day.Format(fitness.DateLayout)).WithField("key", res.Key)

	if e.opts.Locker != nil {
		lock, err := e.opts.Locker.AcquireLock(ctx, "insights:export:"+res.Key, e.opts.LockTTL)
		if err != nil {
			return e.finish(res, StatusError, fmt.Errorf("failed to lock %s: %w", res.Key, err))
		}
		if lock == nil {
			logger.Info("export already running elsewhere")
			return e.finish(res, StatusLocked, nil)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.WithError(err).Warn("failed to release export lock")
			}
		}()
	}

	if !e.opts.Overwrite {
		exists, err := e.archive.Exists(ctx, res.Key)
		if err != nil {
			return e.finish(res, StatusError, fmt.Errorf("failed to check %s: %w", res.Key, err))
		}
		if exists {
			logger.Debug("report already archived")
			return e.finish(res, StatusSkipped, nil)
		}
	}

	report, err := e.service.GetStatisticsData(ctx, &day, &day)
	if err != nil {
		return e.finish(res, StatusError, fmt.Errorf("failed to compute report for %s: %w", day.Format(fitness.DateLayout), err))
	}
	// A cancelled computation yields an empty report that must not be archived.
	if err := ctx.Err(); err != nil {
		return e.finish(res, StatusError, err)
	}

	body, err := e.opts.Format.Encode(report)
	if err != nil {
		return e.finish(res, StatusError, err)
	}

	start := time.Now()
	err = e.archive.PutReport(ctx, res.Key, body, e.opts.Format.ContentType())
	if e.opts.OTel != nil {
		e.opts.OTel.RecordArchiveOperation(ctx, "put", e.opts.Backend, time.Since(start), int64(len(body)), err)
	}
	if err != nil {
		return e.finish(res, StatusError, fmt.Errorf("failed to store %s: %w", res.Key, err))
	}

	res.Bytes = len(body)
	logger.WithField("bytes", res.Bytes).Info("report archived")
	return e.finish(res, StatusOK, nil)
}

func (e *Exporter) finish(res Result, status string, err error) (Result, error) {
	res.Status = status
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObserveExport(status, res.Bytes, e.now())
	}
	return res, err
}

// BackfillSummary counts the outcomes of a backfill
type BackfillSummary struct {
	Exported int
	Skipped  int
	Locked   int
	Failed   int
}

// Backfill exports every day from first to last inclusive, oldest first,
// drawing a progress bar on progress when it is non-nil. A failed day does
// not stop the backfill; cancellation does. The returned error joins every
// per-day failure.
func (e *Exporter) Backfill(ctx context.Context, first, last time.Time, progress io.Writer) (BackfillSummary, error) {
	var summary BackfillSummary

	first, last = fitness.StartOfDay(first), fitness.StartOfDay(last)
	if last.Before(first) {
		return summary, fmt.Errorf("backfill range ends (%s) before it starts (%s)",
			last.Format(fitness.DateLayout), first.Format(fitness.DateLayout))
	}
	days := int(last.Sub(first).Hours()/24) + 1

	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(days,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("exporting reports"),
		progressbar.OptionShowCount(),
	)

	var errs []error
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := e.ExportDay(ctx, day)
		switch res.Status {
		case StatusOK:
			summary.Exported++
		case StatusSkipped:
			summary.Skipped++
		case StatusLocked:
			summary.Locked++
		default:
			if ctx.Err() != nil {
				continue
			}
			summary.Failed++
			errs = append(errs, err)
			e.logger.WithError(err).WithField("day", day.Format(fitness.DateLayout)).Error("export failed")
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return summary, errors.Join(errs...)
}
