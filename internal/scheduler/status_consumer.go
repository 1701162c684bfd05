package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// StatusConsumer feeds the worker registry from the status queue. Messages
// may arrive out of order; the repository's last-seen guard keeps stale
// updates from clobbering fresher state.
type StatusConsumer struct {
	Workers domain.WorkerRepository
	Topics  domain.TopicRepository
}

// NewStatusConsumer constructs the status feed handler.
func NewStatusConsumer(workers domain.WorkerRepository, topics domain.TopicRepository) *StatusConsumer {
	return &StatusConsumer{Workers: workers, Topics: topics}
}

// Handle processes one worker-status delivery. Malformed envelopes are
// acknowledged; registry write failures leave the delivery unacknowledged.
func (c *StatusConsumer) Handle(ctx context.Context, body []byte) error {
	tracer := otel.Tracer("scheduler")
	ctx, span := tracer.Start(ctx, "status.handle", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	msg, err := domain.ParseMessage(body)
	if err != nil || msg.WorkerStatus == nil {
		slog.Error("unexpected status delivery", slog.Any("error", err))
		observability.StatusMessagesTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	status := msg.WorkerStatus.Status
	span.SetAttributes(attribute.String("worker", status.WorkerName))

	switch status.Status.Kind {
	case domain.StatusLifecycle:
		return c.handleLifecycle(ctx, status)
	case domain.StatusJob:
		return c.handleJob(ctx, status)
	case domain.StatusHeartbeat:
		observability.StatusMessagesTotal.WithLabelValues("heartbeat").Inc()
		if err := c.Workers.UpdateHeartbeat(ctx, status.WorkerName, status.Timestamp); err != nil {
			return fmt.Errorf("op=status.heartbeat: %w", err)
		}
		return nil
	}
	slog.Error("status delivery with unknown kind", slog.String("worker", status.WorkerName))
	observability.StatusMessagesTotal.WithLabelValues("malformed").Inc()
	return nil
}

func (c *StatusConsumer) handleLifecycle(ctx context.Context, status domain.StatusMessage) error {
	lc := status.Status.Lifecycle
	observability.StatusMessagesTotal.WithLabelValues("lifecycle").Inc()
	if err := c.Workers.UpdateStatus(ctx, status.WorkerName, lc.WorkerStatus, status.Timestamp); err != nil {
		return fmt.Errorf("op=status.lifecycle: %w", err)
	}
	switch lc.WorkerStatus {
	case domain.WorkerOnline:
		if err := c.Topics.UpsertWorkerTopics(ctx, status.WorkerName, lc.WorkerTopics); err != nil {
			return fmt.Errorf("op=status.topics_upsert: %w", err)
		}
	case domain.WorkerOffline:
		if err := c.Topics.RemoveWorkerTopics(ctx, status.WorkerName); err != nil {
			return fmt.Errorf("op=status.topics_remove: %w", err)
		}
	}
	slog.Info("worker lifecycle",
		slog.String("worker", status.WorkerName),
		slog.String("status", string(lc.WorkerStatus)))
	return nil
}

func (c *StatusConsumer) handleJob(ctx context.Context, status domain.StatusMessage) error {
	observability.StatusMessagesTotal.WithLabelValues("job").Inc()
	var jobID *uuid.UUID
	if jd := status.Status.Job; jd != nil {
		id := jd.JobID
		jobID = &id
	}
	if err := c.Workers.UpdateJob(ctx, status.WorkerName, jobID, status.Timestamp); err != nil {
		return fmt.Errorf("op=status.job: %w", err)
	}
	return nil
}
