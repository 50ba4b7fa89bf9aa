// Package observability provides structured logging, Prometheus and
// OpenTelemetry metrics, tracing setup, health probes and graceful shutdown.
//
// # Logging
//
// Logger writes JSON lines through logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("report", "finance").WithError(err).Warn("report failed")
//
// Loggers derived with WithField share their level, so a config reload can
// call SetLevel on the root logger.
//
// # Metrics
//
// Metrics implements the statistics report recorder:
//
//	metrics := observability.NewMetrics(registry)
//	svc := statistics.NewService(store, logger, statistics.WithRecorder(metrics))
//
// ReportObservers fans report observations out to Prometheus and OTel at once.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("archive", false, archive.HealthCheck)
//	observability.RegisterHealthRoutes(probeMux, checker)
package observability
