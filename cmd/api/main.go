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

	httpadapter "github.com/uptiq/policy-rag/internal/adapters/http"
	mcpadapter "github.com/uptiq/policy-rag/internal/adapters/mcp"
	"github.com/uptiq/policy-rag/internal/bootstrap"
	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/observability/logging"
	"github.com/uptiq/policy-rag/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:          service,
		Registerer:       httpMetrics.Registry(),
		PublishRunEvents: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := mcpadapter.NewServer("policy-rag", app.Orchestrator, cfg.RunTimeout())
	router, err := httpadapter.NewRouter(ctx, app.Orchestrator, httpadapter.RouterOptions{
		Service:    service,
		Config:     app.Config,
		Metrics:    httpMetrics,
		MCP:        mcpadapter.NewHTTPHandler(mcpServer),
		RunTimeout: cfg.RunTimeout(),
		Breakers:   app.Executor,
	})
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RunTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_failed", "error", err)
	}
}
