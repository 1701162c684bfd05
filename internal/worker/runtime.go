package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/broker"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/config"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// Runtime wires the worker together: it announces itself on the status
// exchange, heartbeats, consumes jobs from its topic queue one at a time
// and publishes results. Deliveries are acknowledged exactly once after
// processing; measurement failures ride inside the result envelope and
// never block the ack.
type Runtime struct {
	cfg     config.Config
	engine  *Engine
	jobs    *broker.Subscriber
	results domain.Publisher
	status  domain.Publisher
}

// NewRuntime constructs the worker runtime.
func NewRuntime(cfg config.Config, engine *Engine, jobs *broker.Subscriber, results, status domain.Publisher) *Runtime {
	return &Runtime{cfg: cfg, engine: engine, jobs: jobs, results: results, status: status}
}

// Start announces the worker online, runs the heartbeat task and consumes
// jobs until ctx is cancelled. The in-flight job is drained before the
// offline lifecycle message goes out.
func (r *Runtime) Start(ctx context.Context) error {
	topics := r.cfg.WorkerTopics()
	online := domain.NewLifecycleMessage(r.cfg.WorkerName, topics, domain.WorkerOnline, time.Now().UTC())
	if err := r.status.Publish(ctx, online, ""); err != nil {
		return fmt.Errorf("op=worker.start.online: %w", err)
	}
	slog.Info("worker online",
		slog.String("worker", r.cfg.WorkerName),
		slog.Any("topics", topics))

	go r.heartbeat(ctx)

	err := r.jobs.Consume(ctx, r.handleDelivery)

	// Shutdown path: consumption has stopped and the in-flight delivery has
	// drained; announce offline on a fresh context.
	offline := domain.NewLifecycleMessage(r.cfg.WorkerName, topics, domain.WorkerOffline, time.Now().UTC())
	if pubErr := r.status.Publish(context.Background(), offline, ""); pubErr != nil {
		slog.Error("offline status publish failed", slog.Any("error", pubErr))
	}
	slog.Info("worker offline", slog.String("worker", r.cfg.WorkerName))
	return err
}

// heartbeat emits a heartbeat status every HEARTBEAT_INTERVAL_SEC until the
// context is cancelled.
func (r *Runtime) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := domain.NewHeartbeatMessage(r.cfg.WorkerName, time.Now().UTC())
			if err := r.status.Publish(ctx, hb, ""); err != nil {
				slog.Error("heartbeat publish failed", slog.Any("error", err))
			}
		}
	}
}

// handleDelivery processes one job delivery. Malformed envelopes are logged
// and acknowledged; only a result-publish failure leaves the delivery
// unacknowledged so the broker redelivers it.
func (r *Runtime) handleDelivery(ctx context.Context, body []byte) error {
	// The job must drain even when shutdown cancels the consume context.
	runCtx := context.WithoutCancel(ctx)

	msg, err := domain.ParseMessage(body)
	if err != nil || msg.WorkerJob == nil {
		slog.Error("unexpected job delivery", slog.Any("error", err))
		return nil
	}
	job := msg.WorkerJob
	runID := uuid.New()
	slog.Info("job received",
		slog.String("job_id", job.JobID.String()),
		slog.String("sub_job_id", job.Payload.SubJobID.String()),
		slog.String("run_id", runID.String()))

	busy := domain.NewJobStatusMessage(r.cfg.WorkerName, &domain.JobStatusDetails{
		RunID:      runID,
		JobID:      job.JobID,
		SubJobID:   job.Payload.SubJobID,
		WorkerName: r.cfg.WorkerName,
	}, time.Now().UTC())
	if err := r.status.Publish(runCtx, busy, ""); err != nil {
		slog.Error("job status publish failed", slog.Any("error", err))
	}

	result := r.engine.Run(runCtx, runID, job.Payload)

	idle := domain.NewJobStatusMessage(r.cfg.WorkerName, nil, time.Now().UTC())
	if err := r.status.Publish(runCtx, idle, ""); err != nil {
		slog.Error("job status publish failed", slog.Any("error", err))
	}

	envelope := &domain.Message{WorkerResult: &domain.WorkerResult{JobID: job.JobID, Result: result}}
	if err := r.results.Publish(runCtx, envelope, ""); err != nil {
		return fmt.Errorf("op=worker.publish_result: %w", err)
	}
	slog.Info("job finished",
		slog.String("run_id", runID.String()),
		slog.Bool("is_success", result.IsSuccess))
	return nil
}
