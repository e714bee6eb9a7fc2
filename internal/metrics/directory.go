package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Remote directory metrics
var (
	// DirectoryRequestsTotal counts calls to the remote event and user services
	DirectoryRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_requests_total",
			Help:      "Total number of remote directory requests",
		},
		[]string{"service", "operation", "outcome"}, // outcome: success|not_found|error|timeout
	)

	// DirectoryLatency records remote directory request latency
	DirectoryLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "directory_latency_seconds",
			Help:      "Remote directory request latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation"},
	)
)

// RecordDirectoryCall records one remote directory request.
//
//	start := time.Now()
//	defer func() { metrics.RecordDirectoryCall("events", "get_one", start, outcome) }()
func RecordDirectoryCall(service, operation string, start time.Time, outcome string) {
	DirectoryRequestsTotal.WithLabelValues(service, operation, outcome).Inc()
	DirectoryLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}
