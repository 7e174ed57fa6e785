package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational counters for the aggregator. Registered on the default
// registry and served at /metrics.
var (
	analyzerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "animal_farm",
		Subsystem: "analyzer",
		Name:      "calls_total",
		Help:      "Analyzer calls by service and outcome status.",
	}, []string{"service", "status"})

	analyzerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "animal_farm",
		Subsystem: "analyzer",
		Name:      "call_duration_seconds",
		Help:      "Analyzer call duration by service.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"service"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "animal_farm",
		Subsystem: "analysis",
		Name:      "request_duration_seconds",
		Help:      "End-to-end analysis request duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	consensusSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "animal_farm",
		Subsystem: "analysis",
		Name:      "consensus_size",
		Help:      "Number of emojis in the emitted consensus.",
		Buckets:   prometheus.LinearBuckets(0, 2, 10),
	})
)

// ObserveAnalyzerCall records one analyzer call outcome.
func ObserveAnalyzerCall(service, status string, elapsed time.Duration) {
	analyzerCalls.WithLabelValues(service, status).Inc()
	analyzerDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// ObserveRequest records one full analysis request.
func ObserveRequest(elapsed time.Duration, consensusLen int) {
	requestDuration.Observe(elapsed.Seconds())
	consensusSize.Observe(float64(consensusLen))
}
