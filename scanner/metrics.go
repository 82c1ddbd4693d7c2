package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatestHeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "latest_head_block",
		Help:      "Shows the latest confirmed head block seen by the scan job.",
	}, []string{"job"})
	CheckpointBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "checkpoint_block",
		Help:      "Shows the last processed block for the particular contract and aggregation type.",
	}, []string{"job", "address", "aggregation_type"})
	ScannedWindows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "windows_total",
		Help:      "Block windows fetched and dispatched by the scan job.",
	}, []string{"job"})
	ScanState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "state",
		Help:      "Current scan job state: 0 idle, 1 scanning, 2 advancing, 3 retrying, 4 failed.",
	}, []string{"job"})
)
