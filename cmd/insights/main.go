package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fitmatch/insights/pkg/api"
	"github.com/fitmatch/insights/pkg/app"
	"github.com/fitmatch/insights/pkg/config"
	"github.com/fitmatch/insights/pkg/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "insights: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", "insights").
		WithField("version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.File != "" {
		go func() {
			defer observability.RecoverPanic(logger, "config watcher")
			if err := config.WatchLogLevel(ctx, cfg.File, logger); err != nil {
				logger.WithError(err).Warn("log level hot reload disabled")
			}
		}()
	}

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return err
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}

	service, err := app.NewService(cfg, deps.Store, logger, observability.ReportObservers{metrics, otelMetrics})
	if err != nil {
		deps.Close(ctx)
		return err
	}

	rateLimit, err := app.NewRateLimit(cfg.RateLimit, deps.Redis, metrics)
	if err != nil {
		deps.Close(ctx)
		return err
	}

	opts := api.Options{
		Logger:         logger,
		RateLimit:      rateLimit,
		RequestTimeout: cfg.Statistics.RequestTimeout,
	}
	if cfg.Observability.MetricsEnabled {
		opts.Metrics = metrics
	}
	handler := otelhttp.NewHandler(api.NewServer(service, opts), "insights")

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(deps.DB(), deps.RedisClient())
	checker.SetVersion(version)
	probeMux := http.NewServeMux()
	observability.RegisterHealthRoutes(probeMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(probeMux, registry)
	}
	probeServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           probeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if deps.Conns != nil {
		deps.Conns.StartHealthCheckRoutine(ctx, 30*time.Second)
	}
	deps.StartPoolStatsLoop(ctx, metrics, 15*time.Second)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, probeServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancel()
		return deps.Close(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, probeServer} {
		go func(srv *http.Server) {
			defer observability.RecoverPanic(logger, "http server")
			logger.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
		}(srv)
	}

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case err := <-serveErr:
			logger.WithError(err).Error("server stopped unexpectedly")
			stop()
		case <-waitCtx.Done():
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}
