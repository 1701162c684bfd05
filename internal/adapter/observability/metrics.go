package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	JobsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_created_total",
			Help: "Total number of benchmark jobs created",
		},
	)
	SubJobsDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sub_jobs_dispatched_total",
			Help: "Total number of sub-jobs published to the job exchange",
		},
	)
	ResultsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_received_total",
			Help: "Total number of worker results consumed, by outcome",
		},
		[]string{"outcome"},
	)
	StatusMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_messages_total",
			Help: "Total number of worker status messages consumed, by kind",
		},
		[]string{"kind"},
	)

	ProbesRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probes_run_total",
			Help: "Total number of measurement probes executed, by probe and outcome",
		},
		[]string{"probe", "outcome"},
	)
	DownloadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "download_bytes_total",
			Help: "Total bytes fetched by download probes",
		},
	)
)

// InitMetrics registers all metrics once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(JobsCreatedTotal)
	prometheus.MustRegister(SubJobsDispatchedTotal)
	prometheus.MustRegister(ResultsReceivedTotal)
	prometheus.MustRegister(StatusMessagesTotal)
	prometheus.MustRegister(ProbesRunTotal)
	prometheus.MustRegister(DownloadBytesTotal)
}

// ObserveProbe records one probe execution.
func ObserveProbe(probe string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	ProbesRunTotal.WithLabelValues(probe, outcome).Inc()
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
