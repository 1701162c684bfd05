package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// SubJobRepo persists and loads sub-jobs.
type SubJobRepo struct{ Pool PgxPool }

// NewSubJobRepo constructs a SubJobRepo with the given pool.
func NewSubJobRepo(p PgxPool) *SubJobRepo { return &SubJobRepo{Pool: p} }

// Create inserts a new sub-job row.
func (r *SubJobRepo) Create(ctx context.Context, s domain.SubJob) error {
	tracer := otel.Tracer("repo.sub_jobs")
	ctx, span := tracer.Start(ctx, "sub_jobs.Create")
	defer span.End()
	details, err := json.Marshal(s.Details)
	if err != nil {
		return fmt.Errorf("op=sub_job.create: %w", err)
	}
	q := `INSERT INTO sub_jobs (id, job_id, status, type, details) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, s.ID, s.JobID, s.Status, s.Type, details); err != nil {
		return fmt.Errorf("op=sub_job.create: %w", err)
	}
	return nil
}

// Get loads a sub-job by id.
func (r *SubJobRepo) Get(ctx context.Context, id uuid.UUID) (domain.SubJob, error) {
	tracer := otel.Tracer("repo.sub_jobs")
	ctx, span := tracer.Start(ctx, "sub_jobs.Get")
	defer span.End()
	var s domain.SubJob
	var details []byte
	q := `SELECT id, job_id, status, type, details FROM sub_jobs WHERE id=$1`
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.JobID, &s.Status, &s.Type, &details); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubJob{}, fmt.Errorf("op=sub_job.get: %w", domain.ErrNotFound)
		}
		return domain.SubJob{}, fmt.Errorf("op=sub_job.get: %w", err)
	}
	if err := json.Unmarshal(details, &s.Details); err != nil {
		return domain.SubJob{}, fmt.Errorf("op=sub_job.get: %w", err)
	}
	return s, nil
}

// UpdateStatus advances a sub-job's status.
func (r *SubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	tracer := otel.Tracer("repo.sub_jobs")
	ctx, span := tracer.Start(ctx, "sub_jobs.UpdateStatus")
	defer span.End()
	q := `UPDATE sub_jobs SET status=$2 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, status); err != nil {
		return fmt.Errorf("op=sub_job.update_status: %w", err)
	}
	return nil
}

// CountPending counts this job's sub-jobs still awaiting a result. The job
// completes once this reaches zero.
func (r *SubJobRepo) CountPending(ctx context.Context, jobID uuid.UUID) (int64, error) {
	tracer := otel.Tracer("repo.sub_jobs")
	ctx, span := tracer.Start(ctx, "sub_jobs.CountPending")
	defer span.End()
	var n int64
	q := `SELECT COUNT(*) FROM sub_jobs WHERE job_id=$1 AND status='pending'`
	if err := r.Pool.QueryRow(ctx, q, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=sub_job.count_pending: %w", err)
	}
	return n, nil
}
