// Package worker implements the measurement engine and the runtime that
// consumes jobs, executes time-synchronized probes and reports status and
// results back to the scheduler.
package worker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/adapter/observability"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

const (
	// probeDeadlineMargin is subtracted from the download start to give the
	// ping/head probes a quiet window before bulk traffic starts.
	probeDeadlineMargin = 2 * time.Second
	// chunkReadTimeout bounds the wait for any single download chunk.
	chunkReadTimeout = 10 * time.Second
	// seqMax is the number of echo/HEAD requests per probe run.
	seqMax = 10
)

// Engine runs the three measurement probes for one job. Probes share
// nothing mutable; each request path owns its own buffers.
type Engine struct {
	workerName string
	client     *http.Client
}

// NewEngine constructs an engine for the named worker.
func NewEngine(workerName string) *Engine {
	return &Engine{
		workerName: workerName,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Run executes one combined download+head+ping measurement. If the
// scheduled start is already in the past the run is aborted and every probe
// reports the same failure; otherwise the engine sleeps until the start
// instant and launches the probes in parallel. The aggregated success flag
// follows the download outcome alone.
func (e *Engine) Run(ctx context.Context, runID uuid.UUID, msg domain.JobMessage) domain.ResultMessage {
	if time.Now().After(msg.StartTime) {
		const reason = "Start time is in the past"
		return domain.NewResultMessage(runID, msg.JobID, msg.SubJobID, e.workerName,
			domain.Errf[domain.DownloadResult](reason),
			domain.Errf[domain.LatencyStats](reason),
			domain.Errf[domain.LatencyStats](reason),
		)
	}
	sleepUntil(ctx, msg.StartTime)

	var (
		wg       sync.WaitGroup
		download domain.Outcome[domain.DownloadResult]
		ping     domain.Outcome[domain.LatencyStats]
		head     domain.Outcome[domain.LatencyStats]
	)
	wg.Add(3)
	go func() { defer wg.Done(); download = e.downloadProbe(ctx, msg) }()
	go func() { defer wg.Done(); ping = e.pingProbe(ctx, msg) }()
	go func() { defer wg.Done(); head = e.headProbe(ctx, msg) }()
	wg.Wait()

	observability.ObserveProbe("download", download.IsOK())
	observability.ObserveProbe("ping", ping.IsOK())
	observability.ObserveProbe("head", head.IsOK())

	return domain.NewResultMessage(runID, msg.JobID, msg.SubJobID, e.workerName, download, ping, head)
}

// probeLoopDeadline is the instant at which the ping and head loops must
// stop so the line is quiet when the bulk download begins.
func probeLoopDeadline(msg domain.JobMessage) time.Time {
	return msg.DownloadStartTime.Add(-probeDeadlineMargin)
}

// sleepUntil blocks until the wall-clock instant t or context cancellation.
func sleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// latencyStats folds a non-empty latency vector into min/max/avg.
func latencyStats(latencies []float64) domain.LatencyStats {
	min, max, sum := latencies[0], latencies[0], 0.0
	for _, l := range latencies {
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
		sum += l
	}
	return domain.LatencyStats{Min: min, Max: max, Avg: sum / float64(len(latencies))}
}
