// Package metrics exposes Prometheus collectors for the render pipeline,
// served on /metrics by the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markview",
			Subsystem: "render",
			Name:      "renders_total",
			Help:      "Total render invocations by renderer and outcome",
		},
		[]string{"renderer", "outcome"},
	)

	RenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "markview",
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Duration of render invocations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "markview",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Pending work items after coalescing",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "markview",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Rendered entries currently cached",
		},
	)

	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markview",
			Subsystem: "api",
			Name:      "polls_total",
			Help:      "Poll responses by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RendersTotal,
		RenderDuration,
		QueueDepth,
		CacheEntries,
		PollsTotal,
	)
}
