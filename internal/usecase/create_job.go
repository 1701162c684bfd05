// Package usecase contains the scheduler's application services.
package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

const (
	// windowSize is the byte length of the range every worker downloads.
	windowSize int64 = 100 * 1 << 20

	// subJobFanout is how many staggered measurement rounds one job gets.
	subJobFanout = 2
)

// JobService creates benchmark jobs, fans them out into scheduled sub-jobs
// and serves collected data back out.
type JobService struct {
	Jobs     domain.JobRepository
	SubJobs  domain.SubJobRepository
	JobQueue domain.Publisher
	HTTP     *http.Client

	validate *validator.Validate
	// now is swappable in tests.
	now func() time.Time
}

// NewJobService constructs a JobService with its dependencies.
func NewJobService(jobs domain.JobRepository, subJobs domain.SubJobRepository, queue domain.Publisher, client *http.Client) *JobService {
	return &JobService{
		Jobs:     jobs,
		SubJobs:  subJobs,
		JobQueue: queue,
		HTTP:     client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// CreateJobInput is the POST /job request body.
type CreateJobInput struct {
	URL        string `json:"url" validate:"required,url"`
	RoutingKey string `json:"routing_key" validate:"required,min=1,max=255"`
}

// CreateJobOutput is the POST /job response body. Sub-jobs are reported as
// bare ids; their schedule is internal.
type CreateJobOutput struct {
	JobID   uuid.UUID   `json:"job_id"`
	SubJobs []uuid.UUID `json:"sub_jobs"`
}

// CreateJob validates the target, probes its size, picks a random download
// window, persists the job with its sub-jobs and publishes one message per
// sub-job on the job exchange.
func (s *JobService) CreateJob(ctx context.Context, in CreateJobInput) (CreateJobOutput, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "job.create")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return CreateJobOutput{}, fmt.Errorf("op=job.create: %w: %v", domain.ErrInvalidArgument, err)
	}
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return CreateJobOutput{}, fmt.Errorf("op=job.create: %w: url scheme must be http or https", domain.ErrInvalidArgument)
	}
	span.SetAttributes(attribute.String("routing_key", in.RoutingKey))

	length, err := s.contentLength(ctx, in.URL)
	if err != nil {
		return CreateJobOutput{}, err
	}
	if length < windowSize {
		return CreateJobOutput{}, &domain.MessageError{Err: domain.ErrInvalidArgument, Message: "File size is less than 100 MB"}
	}
	start := rand.Int64N(length - windowSize + 1)
	details := domain.JobDetails{StartRange: start, EndRange: start + windowSize}

	job := domain.Job{
		ID:         uuid.New(),
		URL:        in.URL,
		RoutingKey: in.RoutingKey,
		Status:     domain.JobPending,
		Details:    details,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return CreateJobOutput{}, fmt.Errorf("op=job.create: %w", err)
	}

	out := CreateJobOutput{JobID: job.ID}
	t0 := s.now().UTC().Add(domain.SyncDelay)
	round := domain.DownloadDelay + domain.MaxDownloadDuration + domain.SyncDelay
	for i := 0; i < subJobFanout; i++ {
		startTime := t0.Add(time.Duration(i) * round)
		subJob := domain.SubJob{
			ID:     uuid.New(),
			JobID:  job.ID,
			Status: domain.JobPending,
			Type:   domain.SubJobCombinedDHP,
			Details: domain.SubJobDetails{
				StartTime:         startTime,
				DownloadStartTime: startTime.Add(domain.DownloadDelay),
			},
		}
		if err := s.SubJobs.Create(ctx, subJob); err != nil {
			return CreateJobOutput{}, fmt.Errorf("op=job.create_sub_job: %w", err)
		}
		msg := &domain.Message{WorkerJob: &domain.WorkerJob{
			JobID: job.ID,
			Payload: domain.JobMessage{
				JobID:             job.ID,
				SubJobID:          subJob.ID,
				URL:               in.URL,
				StartTime:         subJob.Details.StartTime,
				DownloadStartTime: subJob.Details.DownloadStartTime,
				StartRange:        details.StartRange,
				EndRange:          details.EndRange,
			},
		}}
		if err := s.JobQueue.Publish(ctx, msg, job.RoutingKey); err != nil {
			return CreateJobOutput{}, fmt.Errorf("op=job.publish: %w", err)
		}
		observability.SubJobsDispatchedTotal.Inc()
		out.SubJobs = append(out.SubJobs, subJob.ID)
	}
	observability.JobsCreatedTotal.Inc()
	return out, nil
}

// contentLength issues a HEAD request against the target and returns its
// advertised size.
func (s *JobService) contentLength(ctx context.Context, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, fmt.Errorf("op=job.head: %w: %v", domain.ErrInvalidArgument, err)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("op=job.head: %w: %v", domain.ErrUpstreamHTTP, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("op=job.head: %w: status %d", domain.ErrUpstreamHTTP, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("op=job.head: %w: target reports no content length", domain.ErrUpstreamHTTP)
	}
	return resp.ContentLength, nil
}
