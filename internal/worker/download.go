package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// downloadProbe fetches the job's byte range and samples throughput once per
// second. It waits for the download start instant first so the other probes
// measure an idle line, then reads until EOF, the wall-clock budget, or a
// stalled chunk. Zero bytes downloaded is a failure; a timeout after data
// has flowed is a valid (truncated) measurement.
func (e *Engine) downloadProbe(ctx context.Context, msg domain.JobMessage) domain.Outcome[domain.DownloadResult] {
	sleepUntil(ctx, msg.DownloadStartTime)
	if ctx.Err() != nil {
		return domain.Errf[domain.DownloadResult]("cancelled: %v", ctx.Err())
	}

	deadline := msg.DownloadStartTime.Add(domain.MaxDownloadDuration)
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, msg.URL, nil)
	if err != nil {
		return domain.Errf[domain.DownloadResult]("invalid request: %v", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", msg.StartRange, msg.EndRange))
	req.Header.Set("User-Agent", "curl/7.68.0")
	req.Header.Set("Accept", "*/*")

	start := time.Now()
	startUTC := time.Now().UTC()
	resp, err := e.client.Do(req)
	if err != nil {
		return domain.Errf[domain.DownloadResult]("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Errf[domain.DownloadResult]("request failed with status: %d", resp.StatusCode)
	}

	// A stalled read cancels the request; the timer is re-armed per chunk.
	chunkTimer := time.AfterFunc(chunkReadTimeout, cancel)
	defer chunkTimer.Stop()

	var (
		totalBytes    int64
		intervalBytes int64
		ttfb          float64
		logs          []domain.SecondLog
		buf           = make([]byte, 32*1024)
		nextBoundary  = nextEvenSecond(startUTC)
	)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunkTimer.Reset(chunkReadTimeout)
			if totalBytes == 0 {
				ttfb = float64(time.Since(start).Microseconds()) / 1000.0
			}
			totalBytes += int64(n)
			intervalBytes += int64(n)
			now := time.Now().UTC()
			if !now.Before(nextBoundary) {
				logs = append(logs, domain.SecondLog{
					Timestamp:         now,
					IntervalBytes:     intervalBytes,
					AccumulatingBytes: totalBytes,
				})
				intervalBytes = 0
				nextBoundary = nextEvenSecond(now)
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				slog.Debug("download read terminated", slog.Any("error", readErr))
			}
			break
		}
		if time.Since(start) >= domain.MaxDownloadDuration {
			break
		}
	}

	if totalBytes == 0 {
		return domain.Errf[domain.DownloadResult]("No bytes downloaded")
	}

	endUTC := time.Now().UTC()
	elapsed := time.Since(start).Seconds()
	observability.DownloadBytesTotal.Add(float64(totalBytes))
	return domain.Ok(domain.DownloadResult{
		TotalBytes:        totalBytes,
		ElapsedSecs:       elapsed,
		DownloadSpeed:     float64(totalBytes) * 8 / (elapsed * 1024 * 1024),
		JobStartTime:      msg.StartTime,
		DownloadStartTime: msg.DownloadStartTime,
		EndTime:           endUTC,
		TimeToFirstByteMS: ttfb,
		SecondBySecondLog: logs,
	})
}

// nextEvenSecond returns the next UTC instant whose millisecond offset is a
// multiple of 1000, strictly after t.
func nextEvenSecond(t time.Time) time.Time {
	return t.Truncate(time.Second).Add(time.Second)
}
