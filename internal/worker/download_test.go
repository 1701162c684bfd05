package worker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

func TestDownloadProbe_WaitsForStartAndSendsRange(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 8192)
	var requestedAt atomic.Int64
	var gotRange, gotAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedAt.Store(time.Now().UnixNano())
		gotRange.Store(r.Header.Get("Range"))
		gotAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	e := NewEngine("w1")
	downloadStart := time.Now().UTC().Add(300 * time.Millisecond)
	msg := domain.JobMessage{
		URL:               srv.URL,
		StartRange:        1024,
		EndRange:          5120,
		StartTime:         downloadStart.Add(-domain.DownloadDelay),
		DownloadStartTime: downloadStart,
	}

	out := e.downloadProbe(context.Background(), msg)
	require.True(t, out.IsOK())

	// The probe must hold off until the synchronized start instant.
	assert.False(t, time.Unix(0, requestedAt.Load()).Before(downloadStart))
	assert.Equal(t, "bytes=1024-5120", gotRange.Load())
	assert.Equal(t, "curl/7.68.0", gotAgent.Load())

	assert.Equal(t, int64(len(payload)), out.OK.TotalBytes)
	assert.Greater(t, out.OK.TimeToFirstByteMS, 0.0)
	assert.Equal(t, msg.StartTime, out.OK.JobStartTime)
	assert.Equal(t, downloadStart, out.OK.DownloadStartTime)
}

func TestDownloadProbe_EmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewEngine("w1")
	msg := domain.JobMessage{URL: srv.URL, DownloadStartTime: time.Now().UTC()}

	out := e.downloadProbe(context.Background(), msg)
	require.False(t, out.IsOK())
	assert.Equal(t, "No bytes downloaded", out.Err.Error)
}

func TestDownloadProbe_ErrorStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewEngine("w1")
	msg := domain.JobMessage{URL: srv.URL, DownloadStartTime: time.Now().UTC()}

	out := e.downloadProbe(context.Background(), msg)
	require.False(t, out.IsOK())
	assert.Equal(t, "request failed with status: 403", out.Err.Error)
}

func TestDownloadProbe_SamplesThroughputPerSecond(t *testing.T) {
	chunk := bytes.Repeat([]byte("y"), 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for i := 0; i < 13; i++ {
			_, _ = w.Write(chunk)
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}))
	defer srv.Close()

	e := NewEngine("w1")
	msg := domain.JobMessage{URL: srv.URL, DownloadStartTime: time.Now().UTC()}

	out := e.downloadProbe(context.Background(), msg)
	require.True(t, out.IsOK())
	assert.Equal(t, int64(13*len(chunk)), out.OK.TotalBytes)

	// Streaming across a second boundary yields at least one sample, with
	// the running total strictly increasing and bounded by the final count.
	require.NotEmpty(t, out.OK.SecondBySecondLog)
	var prev int64
	for _, entry := range out.OK.SecondBySecondLog {
		assert.Positive(t, entry.IntervalBytes)
		assert.Greater(t, entry.AccumulatingBytes, prev)
		prev = entry.AccumulatingBytes
	}
	assert.LessOrEqual(t, prev, out.OK.TotalBytes)
}
