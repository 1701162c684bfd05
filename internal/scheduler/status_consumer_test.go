package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

type statusCall struct {
	name   string
	status domain.WorkerStatus
	ts     time.Time
}

type jobCall struct {
	name  string
	jobID *uuid.UUID
	ts    time.Time
}

type fakeWorkerRepo struct {
	statusCalls    []statusCall
	jobCalls       []jobCall
	heartbeatCalls []statusCall
	err            error
}

func (f *fakeWorkerRepo) UpdateStatus(_ context.Context, name string, status domain.WorkerStatus, ts time.Time) error {
	f.statusCalls = append(f.statusCalls, statusCall{name: name, status: status, ts: ts})
	return f.err
}

func (f *fakeWorkerRepo) UpdateJob(_ context.Context, name string, jobID *uuid.UUID, ts time.Time) error {
	f.jobCalls = append(f.jobCalls, jobCall{name: name, jobID: jobID, ts: ts})
	return f.err
}

func (f *fakeWorkerRepo) UpdateHeartbeat(_ context.Context, name string, ts time.Time) error {
	f.heartbeatCalls = append(f.heartbeatCalls, statusCall{name: name, ts: ts})
	return f.err
}

type fakeTopicRepo struct {
	upserted map[string][]string
	removed  []string
}

func (f *fakeTopicRepo) UpsertWorkerTopics(_ context.Context, workerName string, topics []string) error {
	if f.upserted == nil {
		f.upserted = map[string][]string{}
	}
	f.upserted[workerName] = topics
	return nil
}

func (f *fakeTopicRepo) RemoveWorkerTopics(_ context.Context, workerName string) error {
	f.removed = append(f.removed, workerName)
	return nil
}

func marshalMsg(t *testing.T, msg *domain.Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestStatusHandle_OnlineRegistersWorkerAndTopics(t *testing.T) {
	workers := &fakeWorkerRepo{}
	topics := &fakeTopicRepo{}
	c := NewStatusConsumer(workers, topics)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	body := marshalMsg(t, domain.NewLifecycleMessage("w1", []string{"all", "eu"}, domain.WorkerOnline, ts))
	require.NoError(t, c.Handle(context.Background(), body))

	require.Len(t, workers.statusCalls, 1)
	assert.Equal(t, statusCall{name: "w1", status: domain.WorkerOnline, ts: ts}, workers.statusCalls[0])
	assert.Equal(t, []string{"all", "eu"}, topics.upserted["w1"])
	assert.Empty(t, topics.removed)
}

func TestStatusHandle_OfflineRemovesTopics(t *testing.T) {
	workers := &fakeWorkerRepo{}
	topics := &fakeTopicRepo{}
	c := NewStatusConsumer(workers, topics)

	body := marshalMsg(t, domain.NewLifecycleMessage("w1", []string{"all"}, domain.WorkerOffline, time.Now().UTC()))
	require.NoError(t, c.Handle(context.Background(), body))

	require.Len(t, workers.statusCalls, 1)
	assert.Equal(t, domain.WorkerOffline, workers.statusCalls[0].status)
	assert.Equal(t, []string{"w1"}, topics.removed)
	assert.Empty(t, topics.upserted)
}

func TestStatusHandle_JobBusyAndIdle(t *testing.T) {
	workers := &fakeWorkerRepo{}
	c := NewStatusConsumer(workers, &fakeTopicRepo{})
	jobID := uuid.New()

	busy := marshalMsg(t, domain.NewJobStatusMessage("w1", &domain.JobStatusDetails{
		RunID:      uuid.New(),
		JobID:      jobID,
		SubJobID:   uuid.New(),
		WorkerName: "w1",
	}, time.Now().UTC()))
	require.NoError(t, c.Handle(context.Background(), busy))

	idle := marshalMsg(t, domain.NewJobStatusMessage("w1", nil, time.Now().UTC()))
	require.NoError(t, c.Handle(context.Background(), idle))

	require.Len(t, workers.jobCalls, 2)
	require.NotNil(t, workers.jobCalls[0].jobID)
	assert.Equal(t, jobID, *workers.jobCalls[0].jobID)
	assert.Nil(t, workers.jobCalls[1].jobID)
}

func TestStatusHandle_Heartbeat(t *testing.T) {
	workers := &fakeWorkerRepo{}
	c := NewStatusConsumer(workers, &fakeTopicRepo{})
	ts := time.Date(2026, 3, 1, 12, 0, 3, 0, time.UTC)

	require.NoError(t, c.Handle(context.Background(), marshalMsg(t, domain.NewHeartbeatMessage("w2", ts))))
	require.Len(t, workers.heartbeatCalls, 1)
	assert.Equal(t, "w2", workers.heartbeatCalls[0].name)
	assert.Equal(t, ts, workers.heartbeatCalls[0].ts)
}

func TestStatusHandle_RegistryErrorLeavesDeliveryUnacked(t *testing.T) {
	workers := &fakeWorkerRepo{err: errors.New("db down")}
	c := NewStatusConsumer(workers, &fakeTopicRepo{})

	body := marshalMsg(t, domain.NewHeartbeatMessage("w1", time.Now().UTC()))
	require.Error(t, c.Handle(context.Background(), body))
}

func TestStatusHandle_MalformedBodyIsAcked(t *testing.T) {
	c := NewStatusConsumer(&fakeWorkerRepo{}, &fakeTopicRepo{})
	require.NoError(t, c.Handle(context.Background(), []byte(`not json`)))
}
