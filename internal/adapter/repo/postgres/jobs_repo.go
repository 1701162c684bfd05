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

// JobRepo persists and loads jobs.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Create inserts a new job row.
func (r *JobRepo) Create(ctx context.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	details, err := json.Marshal(j.Details)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	q := `INSERT INTO jobs (id, url, routing_key, status, details) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, j.ID, j.URL, j.RoutingKey, j.Status, details); err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	return nil
}

// UpdateStatus advances a job's status.
func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.UpdateStatus")
	defer span.End()
	q := `UPDATE jobs SET status=$2 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, status); err != nil {
		return fmt.Errorf("op=job.update_status: %w", err)
	}
	return nil
}

// GetWithData loads a job and every worker result collected for it.
func (r *JobRepo) GetWithData(ctx context.Context, id uuid.UUID) (domain.JobWithData, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.GetWithData")
	defer span.End()

	var out domain.JobWithData
	var details []byte
	q := `SELECT id, url, routing_key, details FROM jobs WHERE id=$1`
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&out.ID, &out.URL, &out.RoutingKey, &details); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", domain.ErrNotFound)
		}
		return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", err)
	}
	if err := json.Unmarshal(details, &out.Details); err != nil {
		return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", err)
	}

	dq := `SELECT id, worker_name, download, ping, head FROM worker_data WHERE job_id=$1 ORDER BY id`
	rows, err := r.Pool.Query(ctx, dq, id)
	if err != nil {
		return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", err)
	}
	defer rows.Close()
	out.Data = []domain.WorkerData{}
	for rows.Next() {
		var d domain.WorkerData
		if err := rows.Scan(&d.ID, &d.WorkerName, &d.Download, &d.Ping, &d.Head); err != nil {
			return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", err)
		}
		out.Data = append(out.Data, d)
	}
	if err := rows.Err(); err != nil {
		return domain.JobWithData{}, fmt.Errorf("op=job.get_with_data: %w", err)
	}
	return out, nil
}
