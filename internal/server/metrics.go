// Package server — metrics.go registers the Prometheus metrics owned by
// the HTTP server and exposes the helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests
// can inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// sessionsActive is the number of websocket chat sessions currently open.
	sessionsActive prometheus.Gauge

	// sessionQueriesTotal counts streaming queries completed, partitioned
	// by outcome: "ok", "cancelled", or "error".
	sessionQueriesTotal *prometheus.CounterVec

	// sessionQueryDuration records the wall-clock duration of a streaming
	// query from start event to completion.
	sessionQueryDuration *prometheus.HistogramVec

	// ingestTotal counts document ingests, partitioned by outcome.
	ingestTotal *prometheus.CounterVec

	// generationTotal counts file generation jobs, partitioned by outcome.
	generationTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, logical handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "studyflow",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of websocket chat sessions currently open.",
		}),

		sessionQueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "session",
			Name:      "queries_total",
			Help:      "Total streaming queries completed, partitioned by outcome.",
		}, []string{"outcome"}),

		sessionQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studyflow",
			Subsystem: "session",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of streaming queries from start to completion.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total document ingests, partitioned by outcome.",
		}, []string{"outcome"}),

		generationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "filegen",
			Name:      "jobs_total",
			Help:      "Total file generation jobs launched, partitioned by outcome.",
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studyflow",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}
