package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_cycle_seconds",
		Help:    "Time spent evaluating a single pending request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	dispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Dispatch cycle outcomes grouped by terminal state.",
	}, []string{"result"})

	candidatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_candidates_skipped_total",
		Help: "Candidate drivers excluded during evaluation, by reason.",
	}, []string{"reason"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Pending ride requests observed at the start of a drain pass.",
	})
)
