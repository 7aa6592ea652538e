package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptiq/policy-rag/internal/bootstrap"
	"github.com/uptiq/policy-rag/internal/config"
	natsqueue "github.com/uptiq/policy-rag/internal/infrastructure/queue/nats"
	"github.com/uptiq/policy-rag/internal/observability/logging"
	"github.com/uptiq/policy-rag/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(service, cfg.LogLevel)
	if cfg.NATSURL == "" {
		logger.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:          service,
		Registerer:       workerMetrics.Registry(),
		PublishRunEvents: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if app.NATS == nil {
		logger.Error("worker_requires_nats", "url", cfg.NATSURL)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:         ":" + cfg.WorkerMetricsPort,
		Handler:      workerMetrics.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	responder := natsqueue.NewQueryResponder(
		app.NATS,
		app.Orchestrator,
		cfg.NATSQueriesSubject,
		cfg.NATSQueueGroup,
		cfg.RunTimeout(),
	).WithMetrics(workerMetrics)
	if err := responder.Serve(ctx); err != nil {
		logger.Error("worker_serve_failed", "error", err)
	}
}
