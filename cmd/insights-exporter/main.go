package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/fitmatch/insights/pkg/app"
	"github.com/fitmatch/insights/pkg/config"
	"github.com/fitmatch/insights/pkg/export"
	"github.com/fitmatch/insights/pkg/fitness"
	"github.com/fitmatch/insights/pkg/observability"
)

var (
	runOnce      = flag.Bool("run-once", false, "Export one day and exit")
	exportDate   = flag.String("date", "", "Day to export (YYYY-MM-DD). If empty, exports yesterday. Only used with -run-once")
	backfillFrom = flag.String("backfill-from", "", "First day of a backfill (YYYY-MM-DD)")
	backfillTo   = flag.String("backfill-to", "", "Last day of a backfill (YYYY-MM-DD). If empty, backfills up to yesterday")
	overwrite    = flag.Bool("overwrite", false, "Rewrite days that are already archived")
)

var version = "dev"

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "insights-exporter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", "insights-exporter").
		WithField("version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := observability.ShutdownOTel(context.Background(), providers, logger); err != nil {
			logger.WithError(err).Warn("OpenTelemetry shutdown failed")
		}
	}()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return err
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	service, err := app.NewService(cfg, deps.Store, logger, observability.ReportObservers{metrics, otelMetrics})
	if err != nil {
		return err
	}

	archive, backend, err := app.OpenArchive(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	opts := export.Options{
		Format:    format,
		Overwrite: *overwrite,
		LockTTL:   cfg.Export.LockTTL,
		Backend:   backend,
		Metrics:   metrics,
		OTel:      otelMetrics,
		Logger:    logger,
	}
	if deps.Redis != nil {
		opts.Locker = deps.Redis
	}
	exporter := export.NewExporter(service, archive, opts)

	yesterday := fitness.StartOfDay(time.Now()).AddDate(0, 0, -1)

	// Backfill mode
	if *backfillFrom != "" {
		first, err := parseDay(*backfillFrom)
		if err != nil {
			return err
		}
		last := yesterday
		if *backfillTo != "" {
			if last, err = parseDay(*backfillTo); err != nil {
				return err
			}
		}
		summary, err := exporter.Backfill(ctx, first, last, os.Stderr)
		logger.WithFields(map[string]interface{}{
			"exported": summary.Exported,
			"skipped":  summary.Skipped,
			"locked":   summary.Locked,
			"failed":   summary.Failed,
		}).Info("backfill finished")
		return err
	}

	// Run once mode
	if *runOnce {
		day := yesterday
		if *exportDate != "" {
			if day, err = parseDay(*exportDate); err != nil {
				return err
			}
		}
		res, err := exporter.ExportDay(ctx, day)
		if err != nil {
			return err
		}
		logger.WithField("key", res.Key).WithField("status", res.Status).Info("export finished")
		return nil
	}

	// Scheduled mode
	c := cron.New(cron.WithLocation(time.UTC), cron.WithLogger(app.NewCronLogger(logger)))
	_, err = c.AddFunc(cfg.Export.Schedule, func() {
		defer observability.RecoverPanic(logger, "daily export")

		day := fitness.StartOfDay(time.Now()).AddDate(0, 0, -1)
		if _, err := exporter.ExportDay(ctx, day); err != nil {
			logger.WithError(err).WithField("day", day.Format(fitness.DateLayout)).Error("daily export failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule daily export: %w", err)
	}

	c.Start()
	logger.WithField("schedule", cfg.Export.Schedule).
		WithField("archive", backend).
		Info("insights exporter started")

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	stopped := c.Stop()
	<-stopped.Done()

	logger.Info("exporter stopped")
	return nil
}

func parseDay(value string) (time.Time, error) {
	day, err := time.Parse(fitness.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}
