package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/repo/postgres"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

func TestSubJobRepo_Create(t *testing.T) {
	pool := &fakePool{}
	repo := postgres.NewSubJobRepo(pool)
	s := domain.SubJob{
		ID:     uuid.New(),
		JobID:  uuid.New(),
		Status: domain.JobPending,
		Type:   domain.SubJobCombinedDHP,
		Details: domain.SubJobDetails{
			StartTime:         time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
			DownloadStartTime: time.Date(2026, 3, 1, 12, 0, 11, 0, time.UTC),
		},
	}

	require.NoError(t, repo.Create(context.Background(), s))
	require.Len(t, pool.execCalls, 1)
	args := pool.execCalls[0].args
	assert.Equal(t, s.ID, args[0])
	assert.Equal(t, s.JobID, args[1])
	assert.Equal(t, domain.JobPending, args[2])
	assert.Equal(t, domain.SubJobCombinedDHP, args[3])
	assert.Contains(t, string(args[4].([]byte)), `"download_start_time"`)
}

func TestSubJobRepo_Get(t *testing.T) {
	id, jobID := uuid.New(), uuid.New()
	details := domain.SubJobDetails{
		StartTime:         time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		DownloadStartTime: time.Date(2026, 3, 1, 12, 0, 11, 0, time.UTC),
	}
	raw, err := json.Marshal(details)
	require.NoError(t, err)

	pool := &fakePool{rowScan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*uuid.UUID) = jobID
		*dest[2].(*domain.JobStatus) = domain.JobProcessing
		*dest[3].(*domain.SubJobType) = domain.SubJobCombinedDHP
		*dest[4].(*[]byte) = raw
		return nil
	}}
	repo := postgres.NewSubJobRepo(pool)

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, domain.JobProcessing, got.Status)
	assert.Equal(t, details, got.Details)
}

func TestSubJobRepo_Get_NotFound(t *testing.T) {
	pool := &fakePool{rowScan: func(...any) error { return pgx.ErrNoRows }}
	repo := postgres.NewSubJobRepo(pool)

	_, err := repo.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubJobRepo_CountPending(t *testing.T) {
	pool := &fakePool{rowScan: func(dest ...any) error {
		*dest[0].(*int64) = 3
		return nil
	}}
	repo := postgres.NewSubJobRepo(pool)

	n, err := repo.CountPending(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
