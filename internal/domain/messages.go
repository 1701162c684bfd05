package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the broker envelope. Exactly one variant is set; the wire
// encoding is externally tagged ({"WorkerJob": {...}} etc.) and field order
// is fixed so a decode/encode round trip is byte-identical.
type Message struct {
	WorkerJob    *WorkerJob    `json:"WorkerJob,omitempty"`
	WorkerResult *WorkerResult `json:"WorkerResult,omitempty"`
	WorkerStatus *WorkerStatusMsg `json:"WorkerStatus,omitempty"`
}

// WorkerJob is published by the scheduler on the job exchange.
type WorkerJob struct {
	JobID   uuid.UUID  `json:"job_id"`
	Payload JobMessage `json:"payload"`
}

// WorkerResult is published by a worker on the result exchange.
type WorkerResult struct {
	JobID  uuid.UUID     `json:"job_id"`
	Result ResultMessage `json:"result"`
}

// WorkerStatusMsg is published by a worker on the status exchange.
type WorkerStatusMsg struct {
	Status StatusMessage `json:"status"`
}

// ParseMessage decodes a broker delivery and rejects envelopes that do not
// carry exactly one variant.
func ParseMessage(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("op=message.parse: %w", err)
	}
	n := 0
	if m.WorkerJob != nil {
		n++
	}
	if m.WorkerResult != nil {
		n++
	}
	if m.WorkerStatus != nil {
		n++
	}
	if n != 1 {
		return nil, fmt.Errorf("op=message.parse: %w: envelope carries %d variants", ErrInvalidArgument, n)
	}
	return &m, nil
}

// JobMessage is the payload a worker executes: one time-synchronized
// combined download+head+ping run.
type JobMessage struct {
	JobID             uuid.UUID `json:"job_id"`
	SubJobID          uuid.UUID `json:"sub_job_id"`
	URL               string    `json:"url"`
	StartTime         time.Time `json:"start_time"`
	DownloadStartTime time.Time `json:"download_start_time"`
	StartRange        int64     `json:"start_range"`
	EndRange          int64     `json:"end_range"`
}

// ProbeError is the Err payload of a probe outcome.
type ProbeError struct {
	Error string `json:"error"`
}

// Outcome is a per-probe success-or-error sum. It encodes as {"Ok": ...}
// or {"Err": {"error": ...}} so each probe's failure stays independent of
// the others.
type Outcome[T any] struct {
	OK  *T
	Err *ProbeError
}

// Ok wraps a successful probe payload.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{OK: &v} }

// Errf wraps a probe failure message.
func Errf[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{Err: &ProbeError{Error: fmt.Sprintf(format, args...)}}
}

// IsOK reports whether the outcome carries the Ok variant.
func (o Outcome[T]) IsOK() bool { return o.Err == nil && o.OK != nil }

// MarshalJSON encodes the outcome as an externally tagged variant.
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(struct {
			Err *ProbeError `json:"Err"`
		}{o.Err})
	}
	return json.Marshal(struct {
		Ok *T `json:"Ok"`
	}{o.OK})
}

// UnmarshalJSON decodes either tagged variant.
func (o *Outcome[T]) UnmarshalJSON(b []byte) error {
	var aux struct {
		Ok  *T          `json:"Ok"`
		Err *ProbeError `json:"Err"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	o.OK, o.Err = aux.Ok, aux.Err
	if o.OK == nil && o.Err == nil {
		return fmt.Errorf("outcome carries neither Ok nor Err")
	}
	return nil
}

// LatencyStats is the min/max/avg triple reported by the ping and head
// probes. Units are seconds for ping and milliseconds for head.
type LatencyStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// SecondLog is one (timestamp, interval bytes, accumulating bytes) sample of
// the download probe's per-second log. It encodes as a 3-element array.
type SecondLog struct {
	Timestamp         time.Time
	IntervalBytes     int64
	AccumulatingBytes int64
}

// MarshalJSON encodes the sample as [ts, interval, total].
func (l SecondLog) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Timestamp, l.IntervalBytes, l.AccumulatingBytes})
}

// UnmarshalJSON decodes the [ts, interval, total] tuple.
func (l *SecondLog) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("second log sample has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &l.Timestamp); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &l.IntervalBytes); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &l.AccumulatingBytes)
}

// DownloadResult is the download probe's success payload.
type DownloadResult struct {
	TotalBytes        int64       `json:"total_bytes"`
	ElapsedSecs       float64     `json:"elapsed_secs"`
	DownloadSpeed     float64     `json:"download_speed"`
	JobStartTime      time.Time   `json:"job_start_time"`
	DownloadStartTime time.Time   `json:"download_start_time"`
	EndTime           time.Time   `json:"end_time"`
	TimeToFirstByteMS float64     `json:"time_to_first_byte_ms"`
	SecondBySecondLog []SecondLog `json:"second_by_second_logs"`
}

// ResultMessage is one worker execution of a sub-job. IsSuccess is defined
// solely by the download probe's outcome.
type ResultMessage struct {
	RunID          uuid.UUID               `json:"run_id"`
	JobID          uuid.UUID               `json:"job_id"`
	SubJobID       uuid.UUID               `json:"sub_job_id"`
	WorkerName     string                  `json:"worker_name"`
	IsSuccess      bool                    `json:"is_success"`
	DownloadResult Outcome[DownloadResult] `json:"download_result"`
	PingResult     Outcome[LatencyStats]   `json:"ping_result"`
	HeadResult     Outcome[LatencyStats]   `json:"head_result"`
}

// NewResultMessage assembles a result and derives IsSuccess from the
// download outcome.
func NewResultMessage(runID, jobID, subJobID uuid.UUID, workerName string,
	download Outcome[DownloadResult], ping, head Outcome[LatencyStats]) ResultMessage {
	return ResultMessage{
		RunID:          runID,
		JobID:          jobID,
		SubJobID:       subJobID,
		WorkerName:     workerName,
		IsSuccess:      download.IsOK(),
		DownloadResult: download,
		PingResult:     ping,
		HeadResult:     head,
	}
}

// StatusKind discriminates the status-message subtypes.
type StatusKind int

const (
	StatusLifecycle StatusKind = iota + 1
	StatusJob
	StatusHeartbeat
)

// LifecycleDetails carries a worker's topic subscriptions alongside its
// online/offline transition.
type LifecycleDetails struct {
	WorkerTopics []string     `json:"worker_topics"`
	WorkerStatus WorkerStatus `json:"worker_status"`
}

// JobStatusDetails identifies the run a worker is currently executing.
type JobStatusDetails struct {
	RunID      uuid.UUID `json:"run_id"`
	JobID      uuid.UUID `json:"job_id"`
	SubJobID   uuid.UUID `json:"sub_job_id"`
	WorkerName string    `json:"worker_name"`
}

// StatusDetails is the tagged union inside a StatusMessage:
// {"Lifecycle": {...}}, {"Job": {...}|null} or the bare string "Heartbeat".
// Job with a nil payload means "no job in flight".
type StatusDetails struct {
	Kind      StatusKind
	Lifecycle *LifecycleDetails
	Job       *JobStatusDetails
}

// MarshalJSON encodes the tagged union.
func (d StatusDetails) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case StatusLifecycle:
		return json.Marshal(struct {
			Lifecycle *LifecycleDetails `json:"Lifecycle"`
		}{d.Lifecycle})
	case StatusJob:
		return json.Marshal(struct {
			Job *JobStatusDetails `json:"Job"`
		}{d.Job})
	case StatusHeartbeat:
		return json.Marshal("Heartbeat")
	}
	return nil, fmt.Errorf("unknown status kind %d", d.Kind)
}

// UnmarshalJSON decodes the tagged union, distinguishing {"Job": null}
// from an absent Job key.
func (d *StatusDetails) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "Heartbeat" {
			return fmt.Errorf("unknown status variant %q", s)
		}
		*d = StatusDetails{Kind: StatusHeartbeat}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw["Lifecycle"]; ok {
		var lc LifecycleDetails
		if err := json.Unmarshal(v, &lc); err != nil {
			return err
		}
		*d = StatusDetails{Kind: StatusLifecycle, Lifecycle: &lc}
		return nil
	}
	if v, ok := raw["Job"]; ok {
		var jd *JobStatusDetails
		if err := json.Unmarshal(v, &jd); err != nil {
			return err
		}
		*d = StatusDetails{Kind: StatusJob, Job: jd}
		return nil
	}
	return fmt.Errorf("status details carry no known variant")
}

// StatusMessage is one update on the worker-status stream. Timestamps drive
// the registry's monotonic last-seen guard.
type StatusMessage struct {
	WorkerName string        `json:"worker_name"`
	Status     StatusDetails `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewLifecycleMessage builds a lifecycle envelope for the status exchange.
func NewLifecycleMessage(workerName string, topics []string, status WorkerStatus, ts time.Time) *Message {
	return &Message{WorkerStatus: &WorkerStatusMsg{Status: StatusMessage{
		WorkerName: workerName,
		Status: StatusDetails{
			Kind:      StatusLifecycle,
			Lifecycle: &LifecycleDetails{WorkerTopics: topics, WorkerStatus: status},
		},
		Timestamp: ts,
	}}}
}

// NewJobStatusMessage builds a job-status envelope; details may be nil to
// signal that the worker is idle again.
func NewJobStatusMessage(workerName string, details *JobStatusDetails, ts time.Time) *Message {
	return &Message{WorkerStatus: &WorkerStatusMsg{Status: StatusMessage{
		WorkerName: workerName,
		Status:     StatusDetails{Kind: StatusJob, Job: details},
		Timestamp:  ts,
	}}}
}

// NewHeartbeatMessage builds a heartbeat envelope.
func NewHeartbeatMessage(workerName string, ts time.Time) *Message {
	return &Message{WorkerStatus: &WorkerStatusMsg{Status: StatusMessage{
		WorkerName: workerName,
		Status:     StatusDetails{Kind: StatusHeartbeat},
		Timestamp:  ts,
	}}}
}
