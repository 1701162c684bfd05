package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/usecase"
)

type stubJobRepo struct {
	withData domain.JobWithData
	err      error
}

func (s *stubJobRepo) Create(context.Context, domain.Job) error { return s.err }

func (s *stubJobRepo) UpdateStatus(context.Context, uuid.UUID, domain.JobStatus) error {
	return s.err
}

func (s *stubJobRepo) GetWithData(context.Context, uuid.UUID) (domain.JobWithData, error) {
	return s.withData, s.err
}

type stubSubJobRepo struct{}

func (stubSubJobRepo) Create(context.Context, domain.SubJob) error { return nil }

func (stubSubJobRepo) Get(context.Context, uuid.UUID) (domain.SubJob, error) {
	return domain.SubJob{}, domain.ErrNotFound
}

func (stubSubJobRepo) UpdateStatus(context.Context, uuid.UUID, domain.JobStatus) error { return nil }

func (stubSubJobRepo) CountPending(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type stubPublisher struct{}

func (stubPublisher) Publish(context.Context, *domain.Message, string) error { return nil }

func newTestServer(jobs *stubJobRepo) *Server {
	svc := usecase.NewJobService(jobs, stubSubJobRepo{}, stubPublisher{}, &http.Client{})
	return NewServer(svc)
}

func TestHealthcheck(t *testing.T) {
	srv := newTestServer(&stubJobRepo{})
	rec := httptest.NewRecorder()

	srv.Healthcheck(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateJob_Accepted(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(200*1<<20, 10))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	srv := newTestServer(&stubJobRepo{})
	body := `{"url":"` + upstream.URL + `","routing_key":"eu"}`
	rec := httptest.NewRecorder()

	srv.CreateJob(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out usecase.CreateJobOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEqual(t, uuid.Nil, out.JobID)

	// Sub-jobs come back as a bare list of ids.
	var raw struct {
		SubJobs []string `json:"sub_jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.SubJobs, 2)
	_, err := uuid.Parse(raw.SubJobs[0])
	assert.NoError(t, err)
}

func TestCreateJob_FileTooSmallBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(100*1<<20-1, 10))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	srv := newTestServer(&stubJobRepo{})
	body := `{"url":"` + upstream.URL + `","routing_key":"eu"}`
	rec := httptest.NewRecorder()

	srv.CreateJob(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "File size is less than 100 MB"}`, rec.Body.String())
}

func TestCreateJob_UnreachableTargetIsBadRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	upstream.Close()

	srv := newTestServer(&stubJobRepo{})
	body := `{"url":"` + upstream.URL + `","routing_key":"eu"}`
	rec := httptest.NewRecorder()

	srv.CreateJob(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body)))

	// The caller submitted a target that cannot be probed, so this is
	// their error, not a gateway fault.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_MalformedBody(t *testing.T) {
	srv := newTestServer(&stubJobRepo{})
	rec := httptest.NewRecorder()

	srv.CreateJob(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestCreateJob_InvalidURL(t *testing.T) {
	srv := newTestServer(&stubJobRepo{})
	rec := httptest.NewRecorder()
	body := `{"url":"ftp://example.com/f.bin","routing_key":"eu"}`

	srv.CreateJob(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetData_Found(t *testing.T) {
	id := uuid.New()
	srv := newTestServer(&stubJobRepo{withData: domain.JobWithData{ID: id, URL: "http://example.com/f.bin"}})
	rec := httptest.NewRecorder()

	srv.GetData(rec, httptest.NewRequest(http.MethodGet, "/data?job_id="+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out domain.JobWithData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, id, out.ID)
}

func TestGetData_NotFound(t *testing.T) {
	srv := newTestServer(&stubJobRepo{err: domain.ErrNotFound})
	rec := httptest.NewRecorder()

	srv.GetData(rec, httptest.NewRequest(http.MethodGet, "/data?job_id="+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetData_BadID(t *testing.T) {
	srv := newTestServer(&stubJobRepo{})
	rec := httptest.NewRecorder()

	srv.GetData(rec, httptest.NewRequest(http.MethodGet, "/data?job_id=nope", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
