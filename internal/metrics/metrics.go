// Package metrics exposes collection counters for the /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sampler's Prometheus collectors. Each instance
// owns its registry so independent instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	SnapshotsWritten prometheus.Counter
	FetchFailures    *prometheus.CounterVec
	CycleFailures    prometheus.Counter
	CycleDuration    prometheus.Histogram
	PurgedSnapshots  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SnapshotsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "sampler_snapshots_written_total",
			Help: "Snapshots persisted to the store.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sampler_fetch_failures_total",
			Help: "Upstream pool state fetches that failed.",
		}, []string{"pool"}),
		CycleFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sampler_cycle_failures_total",
			Help: "Collection cycles abandoned on store write failure.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sampler_cycle_duration_seconds",
			Help:    "Wall time of one collection cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		PurgedSnapshots: factory.NewCounter(prometheus.CounterOpts{
			Name: "sampler_purged_snapshots_total",
			Help: "Snapshots removed by the retention sweep.",
		}),
	}
}
