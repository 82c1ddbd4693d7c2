package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "sweep",
		Name:      "failures_total",
	}, []string{"job"})
	ConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "sweep",
		Name:      "consecutive_failures",
		Help:      "Failed sweeps in a row per job. The service stops when it exceeds the configured limit.",
	}, []string{"job"})
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})
	RewardsHorizon = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "sweep",
		Name:      "rewards_horizon_timestamp",
		Help:      "Unix time up to which lp rewards were last settled.",
	})
)
