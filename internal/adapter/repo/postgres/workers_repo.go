package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// WorkerRepo maintains the worker liveness registry. Status deliveries are
// not ordered, so every write guards against regressing state: last_seen
// only ever grows, and fields driven by ordering (status, job_id) change
// only when the incoming timestamp is strictly newer than the stored
// last_seen. These guards are load-bearing, do not drop them.
type WorkerRepo struct{ Pool PgxPool }

// NewWorkerRepo constructs a WorkerRepo with the given pool.
func NewWorkerRepo(p PgxPool) *WorkerRepo { return &WorkerRepo{Pool: p} }

// UpdateStatus upserts a worker's lifecycle transition.
//
// started_at is applied on online transitions even when a newer heartbeat
// already bumped last_seen, but not when the worker has since shut down;
// that keeps a reordered heartbeat from erasing the start timestamp while
// still ignoring a stale online that arrives after an offline.
func (r *WorkerRepo) UpdateStatus(ctx context.Context, name string, status domain.WorkerStatus, ts time.Time) error {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.UpdateStatus")
	defer span.End()
	q := `
	INSERT INTO workers (worker_name, status, last_seen, job_id, started_at, shutdown_at)
	VALUES ($1, $2, $3, NULL, $4, $5)
	ON CONFLICT (worker_name)
	DO UPDATE SET
		status = CASE
			WHEN workers.last_seen < EXCLUDED.last_seen THEN EXCLUDED.status
			ELSE workers.status
		END,
		job_id = CASE
			WHEN workers.last_seen < EXCLUDED.last_seen THEN EXCLUDED.job_id
			ELSE workers.job_id
		END,
		started_at = CASE
			WHEN EXCLUDED.started_at IS NOT NULL
				AND (workers.shutdown_at IS NULL OR workers.shutdown_at < EXCLUDED.started_at)
				THEN EXCLUDED.started_at
			ELSE workers.started_at
		END,
		shutdown_at = CASE
			WHEN EXCLUDED.shutdown_at IS NOT NULL AND workers.last_seen < EXCLUDED.last_seen
				THEN EXCLUDED.shutdown_at
			ELSE workers.shutdown_at
		END,
		last_seen = GREATEST(workers.last_seen, EXCLUDED.last_seen)`
	var startedAt, shutdownAt *time.Time
	if status == domain.WorkerOnline {
		startedAt = &ts
	}
	if status == domain.WorkerOffline {
		shutdownAt = &ts
	}
	if _, err := r.Pool.Exec(ctx, q, name, status, ts, startedAt, shutdownAt); err != nil {
		return fmt.Errorf("op=worker.update_status: %w", err)
	}
	return nil
}

// UpdateJob records which job the worker is currently executing; a nil job
// id marks it idle. Guarded so a late Job(Some) cannot overwrite a newer
// Job(None).
func (r *WorkerRepo) UpdateJob(ctx context.Context, name string, jobID *uuid.UUID, ts time.Time) error {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.UpdateJob")
	defer span.End()
	q := `UPDATE workers SET last_seen = $2, job_id = $3 WHERE worker_name = $1 AND workers.last_seen < $2`
	if _, err := r.Pool.Exec(ctx, q, name, ts, jobID); err != nil {
		return fmt.Errorf("op=worker.update_job: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes last_seen. A heartbeat for an unknown worker
// inserts a placeholder row so delivery order against the Online message
// does not matter.
func (r *WorkerRepo) UpdateHeartbeat(ctx context.Context, name string, ts time.Time) error {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.UpdateHeartbeat")
	defer span.End()
	q := `
	INSERT INTO workers (worker_name, status, last_seen)
	VALUES ($1, 'online', $2)
	ON CONFLICT (worker_name)
	DO UPDATE SET last_seen = EXCLUDED.last_seen
	WHERE workers.last_seen < EXCLUDED.last_seen`
	if _, err := r.Pool.Exec(ctx, q, name, ts); err != nil {
		return fmt.Errorf("op=worker.update_heartbeat: %w", err)
	}
	return nil
}
