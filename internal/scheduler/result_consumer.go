// Package scheduler hosts the scheduler-side broker consumers: result
// ingestion from workers and the worker-status registry feed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// ResultConsumer ingests worker results: it persists each run exactly once
// and rolls sub-job and job statuses forward.
type ResultConsumer struct {
	Data    domain.DataRepository
	SubJobs domain.SubJobRepository
	Jobs    domain.JobRepository
}

// NewResultConsumer constructs the result ingestion handler.
func NewResultConsumer(data domain.DataRepository, subJobs domain.SubJobRepository, jobs domain.JobRepository) *ResultConsumer {
	return &ResultConsumer{Data: data, SubJobs: subJobs, Jobs: jobs}
}

// Handle processes one delivery from the result queue. A nil return
// acknowledges the delivery; duplicates and results for unknown sub-jobs are
// acknowledged so they do not loop, while transient persistence failures
// leave the delivery unacknowledged for redelivery.
func (c *ResultConsumer) Handle(ctx context.Context, body []byte) error {
	tracer := otel.Tracer("scheduler")
	ctx, span := tracer.Start(ctx, "result.handle", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	msg, err := domain.ParseMessage(body)
	if err != nil || msg.WorkerResult == nil {
		slog.Error("unexpected result delivery", slog.Any("error", err))
		observability.ResultsReceivedTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	result := msg.WorkerResult.Result
	span.SetAttributes(
		attribute.String("run_id", result.RunID.String()),
		attribute.String("sub_job_id", result.SubJobID.String()),
	)

	// Lookup before insert: worker_data references sub_jobs, so a stale
	// result must be dropped here rather than bounce off the foreign key
	// and wedge the queue.
	subJob, err := c.SubJobs.Get(ctx, result.SubJobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("result references unknown sub-job, dropping",
				slog.String("sub_job_id", result.SubJobID.String()))
			observability.ResultsReceivedTotal.WithLabelValues("stale").Inc()
			return nil
		}
		return fmt.Errorf("op=result.sub_job_lookup: %w", err)
	}

	duplicate := false
	if err := c.Data.Save(ctx, result); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			// The row is already there; still run the status roll-forward
			// so a crash between insert and update heals on redelivery.
			slog.Warn("duplicate result run",
				slog.String("run_id", result.RunID.String()))
			observability.ResultsReceivedTotal.WithLabelValues("duplicate").Inc()
			duplicate = true
		case errors.Is(err, domain.ErrNotFound):
			slog.Warn("result references unknown sub-job, dropping",
				slog.String("sub_job_id", result.SubJobID.String()))
			observability.ResultsReceivedTotal.WithLabelValues("stale").Inc()
			return nil
		default:
			return fmt.Errorf("op=result.save: %w", err)
		}
	}

	// A sub-job already settled by an earlier result keeps its status; the
	// data row above is still kept.
	if subJob.Status == domain.JobPending || subJob.Status == domain.JobProcessing {
		status := domain.JobFailed
		if result.IsSuccess {
			status = domain.JobCompleted
		}
		if err := c.SubJobs.UpdateStatus(ctx, subJob.ID, status); err != nil {
			return fmt.Errorf("op=result.sub_job_status: %w", err)
		}
	}

	pending, err := c.SubJobs.CountPending(ctx, subJob.JobID)
	if err != nil {
		return fmt.Errorf("op=result.count_pending: %w", err)
	}
	if pending == 0 {
		if err := c.Jobs.UpdateStatus(ctx, subJob.JobID, domain.JobCompleted); err != nil {
			return fmt.Errorf("op=result.job_status: %w", err)
		}
		slog.Info("job completed", slog.String("job_id", subJob.JobID.String()))
	}

	if !duplicate {
		outcome := "failure"
		if result.IsSuccess {
			outcome = "success"
		}
		observability.ResultsReceivedTotal.WithLabelValues(outcome).Inc()
		slog.Info("result persisted",
			slog.String("run_id", result.RunID.String()),
			slog.String("worker", result.WorkerName),
			slog.Bool("is_success", result.IsSuccess))
	}
	return nil
}
