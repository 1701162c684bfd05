package worker

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// headProbe issues up to seqMax serial HEAD requests, each timed with the
// monotonic clock, stopping at the same loop deadline as the ping probe.
// Latencies are in milliseconds; a run with no successful request fails.
func (e *Engine) headProbe(ctx context.Context, msg domain.JobMessage) domain.Outcome[domain.LatencyStats] {
	deadline := probeLoopDeadline(msg)
	var latencies []float64

	for i := 0; i < seqMax; i++ {
		if !time.Now().Before(deadline) {
			slog.Debug("head loop deadline reached", slog.Int("request", i))
			break
		}
		reqCtx, cancel := context.WithDeadline(ctx, deadline)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, msg.URL, nil)
		if err != nil {
			cancel()
			return domain.Errf[domain.LatencyStats]("invalid request: %v", err)
		}
		start := time.Now()
		resp, err := e.client.Do(req)
		if err != nil {
			cancel()
			slog.Warn("head request failed", slog.Int("request", i), slog.Any("error", err))
			continue
		}
		_ = resp.Body.Close()
		cancel()
		latencies = append(latencies, float64(time.Since(start).Microseconds())/1000.0)
	}

	if len(latencies) == 0 {
		return domain.Errf[domain.LatencyStats]("No successful requests")
	}
	return domain.Ok(latencyStats(latencies))
}
