// Package domain holds the core entities, status enums, repository ports and
// message envelopes shared by the scheduler and the workers.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Timing constants of the time-sync protocol. The scheduler spaces sub-jobs
// by a full measurement window; workers bound the download probe by
// MaxDownloadDuration from the download start instant.
const (
	SyncDelay           = 1 * time.Second
	DownloadDelay       = 10 * time.Second
	MaxDownloadDuration = 60 * time.Second
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamHTTP    = errors.New("upstream http error")
	ErrInternal        = errors.New("internal error")
)

// MessageError pairs a sentinel with the exact message returned to API
// clients, bypassing the internal op-chain wrapping.
type MessageError struct {
	Err     error
	Message string
}

func (e *MessageError) Error() string { return e.Message }

func (e *MessageError) Unwrap() error { return e.Err }

// JobStatus is the lifecycle state of a Job or SubJob.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// SubJobType enumerates sub-job kinds. CombinedDHP runs the download, head
// and ping probes concurrently in a single scheduled window.
type SubJobType string

const (
	SubJobCombinedDHP SubJobType = "combineddhp"
)

// JobDetails is the byte window chosen once at job creation.
type JobDetails struct {
	StartRange int64 `json:"start_range"`
	EndRange   int64 `json:"end_range"`
}

// Job is a user-submitted measurement request against one URL. Mutated only
// by the scheduler after all sub-jobs have left the pending state.
type Job struct {
	ID         uuid.UUID
	URL        string
	RoutingKey string
	Status     JobStatus
	Details    JobDetails
}

// SubJobDetails carries the scheduled timing of one execution attempt.
type SubJobDetails struct {
	StartTime         time.Time `json:"start_time"`
	DownloadStartTime time.Time `json:"download_start_time"`
	// WorkerNames optionally whitelists which workers should run this
	// sub-job; empty means any worker bound to the routing key.
	WorkerNames []string `json:"worker_names,omitempty"`
}

// SubJob is one scheduled execution attempt of a Job.
type SubJob struct {
	ID      uuid.UUID
	JobID   uuid.UUID
	Status  JobStatus
	Type    SubJobType
	Details SubJobDetails
}

// WorkerStatus is the liveness state of a worker.
type WorkerStatus string

const (
	WorkerOnline  WorkerStatus = "online"
	WorkerOffline WorkerStatus = "offline"
)

// Worker is the registry's liveness record, keyed by worker name. Updates
// are applied only when their timestamp strictly exceeds LastSeen.
type Worker struct {
	Name       string
	Status     WorkerStatus
	LastSeen   time.Time
	JobID      *uuid.UUID
	StartedAt  *time.Time
	ShutdownAt *time.Time
}

// WorkerData is one persisted worker execution of a sub-job. Immutable after
// insert; the run id is chosen by the worker and is the primary key.
type WorkerData struct {
	ID         uuid.UUID       `json:"id"`
	WorkerName string          `json:"worker_name"`
	Download   json.RawMessage `json:"download"`
	Ping       json.RawMessage `json:"ping"`
	Head       json.RawMessage `json:"head"`
}

// JobWithData is the GET /data projection: the job row plus every result
// row collected for it.
type JobWithData struct {
	ID         uuid.UUID    `json:"id"`
	URL        string       `json:"url"`
	RoutingKey string       `json:"routing_key"`
	Details    JobDetails   `json:"details"`
	Data       []WorkerData `json:"data"`
}

// Repositories (ports)

type JobRepository interface {
	Create(ctx context.Context, j Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus) error
	GetWithData(ctx context.Context, id uuid.UUID) (JobWithData, error)
}

type SubJobRepository interface {
	Create(ctx context.Context, s SubJob) error
	Get(ctx context.Context, id uuid.UUID) (SubJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus) error
	CountPending(ctx context.Context, jobID uuid.UUID) (int64, error)
}

type DataRepository interface {
	Save(ctx context.Context, r ResultMessage) error
}

type WorkerRepository interface {
	UpdateStatus(ctx context.Context, name string, status WorkerStatus, ts time.Time) error
	UpdateJob(ctx context.Context, name string, jobID *uuid.UUID, ts time.Time) error
	UpdateHeartbeat(ctx context.Context, name string, ts time.Time) error
}

type TopicRepository interface {
	UpsertWorkerTopics(ctx context.Context, workerName string, topics []string) error
	RemoveWorkerTopics(ctx context.Context, workerName string) error
}

// Publisher is the broker port used by the scheduler's job manager and by
// the worker's result/status senders.
type Publisher interface {
	Publish(ctx context.Context, msg *Message, routingKey string) error
}
