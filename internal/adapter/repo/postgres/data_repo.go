package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// DataRepo persists worker result rows. Rows are immutable after insert and
// keyed by the worker-chosen run id, which makes redelivered results
// idempotent at the primary key.
type DataRepo struct{ Pool PgxPool }

// NewDataRepo constructs a DataRepo with the given pool.
func NewDataRepo(p PgxPool) *DataRepo { return &DataRepo{Pool: p} }

// outcomeJSON stores the untagged payload: the success body for Ok, the
// {"error": ...} body for Err.
func outcomeJSON[T any](o domain.Outcome[T]) ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(o.Err)
	}
	return json.Marshal(o.OK)
}

// Save inserts one result row. A duplicate run id maps to
// domain.ErrConflict and a missing sub-job to domain.ErrNotFound so the
// consumer can acknowledge redeliveries instead of looping on them.
func (r *DataRepo) Save(ctx context.Context, res domain.ResultMessage) error {
	tracer := otel.Tracer("repo.worker_data")
	ctx, span := tracer.Start(ctx, "worker_data.Save")
	defer span.End()

	download, err := outcomeJSON(res.DownloadResult)
	if err != nil {
		return fmt.Errorf("op=data.save: %w", err)
	}
	ping, err := outcomeJSON(res.PingResult)
	if err != nil {
		return fmt.Errorf("op=data.save: %w", err)
	}
	head, err := outcomeJSON(res.HeadResult)
	if err != nil {
		return fmt.Errorf("op=data.save: %w", err)
	}

	q := `INSERT INTO worker_data (id, job_id, sub_job_id, worker_name, is_success, download, ping, head)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q,
		res.RunID, res.JobID, res.SubJobID, res.WorkerName, res.IsSuccess,
		download, ping, head,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("op=data.save: %w", domain.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("op=data.save: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=data.save: %w", err)
	}
	return nil
}
