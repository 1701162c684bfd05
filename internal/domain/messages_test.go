package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_SingleVariant(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"WorkerJob":{"job_id":"` + id.String() + `","payload":{"job_id":"` + id.String() + `","sub_job_id":"` + uuid.NewString() + `","url":"http://example.com/f.bin","start_time":"2026-01-02T15:04:05Z","download_start_time":"2026-01-02T15:04:15Z","start_range":0,"end_range":104857600}}}`)
	msg, err := ParseMessage(body)
	require.NoError(t, err)
	require.NotNil(t, msg.WorkerJob)
	assert.Nil(t, msg.WorkerResult)
	assert.Nil(t, msg.WorkerStatus)
	assert.Equal(t, id, msg.WorkerJob.JobID)
}

func TestParseMessage_RejectsEmptyAndMultiVariant(t *testing.T) {
	_, err := ParseMessage([]byte(`{}`))
	require.ErrorIs(t, err, ErrInvalidArgument)

	multi := []byte(`{"WorkerJob":{"job_id":"` + uuid.NewString() + `","payload":{}},"WorkerStatus":{"status":{"worker_name":"w","status":"Heartbeat","timestamp":"2026-01-02T15:04:05Z"}}}`)
	_, err = ParseMessage(multi)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseMessage_MalformedJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{"WorkerJob":`))
	require.Error(t, err)
}

func TestMessage_RoundTripIsByteIdentical(t *testing.T) {
	cases := map[string]string{
		"worker_job":    `{"WorkerJob":{"job_id":"7b47a4e2-93b7-4a16-a4e1-4dcd6dcf7f9a","payload":{"job_id":"7b47a4e2-93b7-4a16-a4e1-4dcd6dcf7f9a","sub_job_id":"1f2a1bb1-55a8-4a6d-8f2e-0a8f6dd8f9b1","url":"http://example.com/f.bin","start_time":"2026-01-02T15:04:05Z","download_start_time":"2026-01-02T15:04:15Z","start_range":1024,"end_range":104858624}}}`,
		"status_online": `{"WorkerStatus":{"status":{"worker_name":"w1","status":{"Lifecycle":{"worker_topics":["all","eu"],"worker_status":"online"}},"timestamp":"2026-01-02T15:04:05Z"}}}`,
		"status_job":    `{"WorkerStatus":{"status":{"worker_name":"w1","status":{"Job":{"run_id":"7b47a4e2-93b7-4a16-a4e1-4dcd6dcf7f9a","job_id":"1f2a1bb1-55a8-4a6d-8f2e-0a8f6dd8f9b1","sub_job_id":"3c71a202-6d51-44f2-9b0a-9a34a2f7c101","worker_name":"w1"}},"timestamp":"2026-01-02T15:04:05Z"}}}`,
		"status_idle":   `{"WorkerStatus":{"status":{"worker_name":"w1","status":{"Job":null},"timestamp":"2026-01-02T15:04:05Z"}}}`,
		"heartbeat":     `{"WorkerStatus":{"status":{"worker_name":"w1","status":"Heartbeat","timestamp":"2026-01-02T15:04:05Z"}}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(raw))
			require.NoError(t, err)
			out, err := json.Marshal(msg)
			require.NoError(t, err)
			assert.Equal(t, raw, string(out))
		})
	}
}

func TestStatusDetails_JobNilVsAbsent(t *testing.T) {
	var d StatusDetails
	require.NoError(t, json.Unmarshal([]byte(`{"Job":null}`), &d))
	assert.Equal(t, StatusJob, d.Kind)
	assert.Nil(t, d.Job)

	err := json.Unmarshal([]byte(`{"Other":null}`), &d)
	require.Error(t, err)
}

func TestStatusDetails_UnknownStringVariant(t *testing.T) {
	var d StatusDetails
	err := json.Unmarshal([]byte(`"Pulse"`), &d)
	require.Error(t, err)
}

func TestOutcome_Encoding(t *testing.T) {
	ok := Ok(LatencyStats{Min: 1, Max: 3, Avg: 2})
	b, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ok":{"min":1,"max":3,"avg":2}}`, string(b))

	fail := Errf[LatencyStats]("Too many packets lost")
	b, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Err":{"error":"Too many packets lost"}}`, string(b))

	var decoded Outcome[LatencyStats]
	require.NoError(t, json.Unmarshal([]byte(`{"Ok":{"min":1,"max":3,"avg":2}}`), &decoded))
	assert.True(t, decoded.IsOK())

	require.Error(t, json.Unmarshal([]byte(`{}`), &decoded))
}

func TestSecondLog_TupleEncoding(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 6, 0, time.UTC)
	l := SecondLog{Timestamp: ts, IntervalBytes: 2048, AccumulatingBytes: 4096}
	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Equal(t, `["2026-01-02T15:04:06Z",2048,4096]`, string(b))

	var back SecondLog
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, l, back)

	require.Error(t, json.Unmarshal([]byte(`["2026-01-02T15:04:06Z",2048]`), &back))
}

func TestNewResultMessage_SuccessFollowsDownload(t *testing.T) {
	runID, jobID, subJobID := uuid.New(), uuid.New(), uuid.New()
	ping := Ok(LatencyStats{Min: 0.01, Max: 0.03, Avg: 0.02})
	head := Errf[LatencyStats]("No successful requests")

	withDownload := NewResultMessage(runID, jobID, subJobID, "w1",
		Ok(DownloadResult{TotalBytes: 1}), ping, head)
	assert.True(t, withDownload.IsSuccess)

	withoutDownload := NewResultMessage(runID, jobID, subJobID, "w1",
		Errf[DownloadResult]("No bytes downloaded"), ping, head)
	assert.False(t, withoutDownload.IsSuccess)
}
