package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// GetData returns a job and every worker result collected for it. The id is
// the raw query-string value; a malformed uuid maps to an invalid-argument
// error rather than a not-found.
func (s *JobService) GetData(ctx context.Context, rawID string) (domain.JobWithData, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "job.get_data")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.JobWithData{}, fmt.Errorf("op=job.get_data: %w: job_id must be a uuid", domain.ErrInvalidArgument)
	}
	jd, err := s.Jobs.GetWithData(ctx, id)
	if err != nil {
		return domain.JobWithData{}, fmt.Errorf("op=job.get_data: %w", err)
	}
	return jd, nil
}
