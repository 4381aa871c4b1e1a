// Package metrics exposes Prometheus instrumentation for the engine
// and API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts workflow runs by terminal status
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelflow",
		Name:      "runs_total",
		Help:      "Workflow runs by terminal status.",
	}, []string{"status"})

	// NodeExecutionsTotal counts node executions by node kind
	NodeExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelflow",
		Name:      "node_executions_total",
		Help:      "Node executions by node kind.",
	}, []string{"kind"})

	// BatchItemsTotal counts batch items by outcome
	BatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelflow",
		Name:      "batch_items_total",
		Help:      "Batch items by outcome.",
	}, []string{"outcome"})

	// RunDuration observes wall-clock run duration in seconds
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reelflow",
		Name:      "run_duration_seconds",
		Help:      "Workflow run duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
