// Command scheduler starts the benchmark scheduler: the REST API plus the
// result and worker-status consumers.
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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/broker"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/repo/postgres"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/app"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/config"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/scheduler"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/usecase"

	httpserver "github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/httpserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
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

	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		slog.Error("database config invalid", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	conn, err := broker.Connect(cfg)
	if err != nil {
		slog.Error("broker connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	jobPub, err := broker.NewPublisher(conn, broker.JobPublisherConfig())
	if err != nil {
		slog.Error("job publisher setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	resultSub, err := broker.NewSubscriber(conn, broker.ResultSubscriberConfig())
	if err != nil {
		slog.Error("result subscriber setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	statusSub, err := broker.NewSubscriber(conn, broker.StatusSubscriberConfig())
	if err != nil {
		slog.Error("status subscriber setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	jobRepo := postgres.NewJobRepo(pool)
	subJobRepo := postgres.NewSubJobRepo(pool)
	dataRepo := postgres.NewDataRepo(pool)
	workerRepo := postgres.NewWorkerRepo(pool)
	topicRepo := postgres.NewTopicRepo(pool)

	headClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   15 * time.Second,
	}
	jobSvc := usecase.NewJobService(jobRepo, subJobRepo, jobPub, headClient)

	results := scheduler.NewResultConsumer(dataRepo, subJobRepo, jobRepo)
	statuses := scheduler.NewStatusConsumer(workerRepo, topicRepo)
	go func() {
		if err := resultSub.Consume(ctx, results.Handle); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("result consumer stopped", slog.Any("error", err))
		}
	}()
	go func() {
		if err := statusSub.Consume(ctx, statuses.Handle); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("status consumer stopped", slog.Any("error", err))
		}
	}()

	handler := app.BuildRouter(cfg, httpserver.NewServer(jobSvc))
	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
