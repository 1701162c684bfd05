// Command worker starts one benchmark worker: it binds a queue to its
// configured topics, executes measurement jobs and reports status and
// results back to the scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/broker"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/config"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := broker.Connect(cfg)
	if err != nil {
		slog.Error("broker connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	jobSub, err := broker.NewSubscriber(conn, broker.JobSubscriberConfig(cfg.WorkerName, cfg.WorkerTopics()))
	if err != nil {
		slog.Error("job subscriber setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	resultPub, err := broker.NewPublisher(conn, broker.ResultPublisherConfig())
	if err != nil {
		slog.Error("result publisher setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	statusPub, err := broker.NewPublisher(conn, broker.StatusPublisherConfig())
	if err != nil {
		slog.Error("status publisher setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Metrics-only HTTP listener; the worker has no API surface.
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerMetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	engine := worker.NewEngine(cfg.WorkerName)
	runtime := worker.NewRuntime(cfg, engine, jobSub, resultPub, statusPub)

	slog.Info("worker starting", slog.String("worker", cfg.WorkerName))
	if err := runtime.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
