package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NewAlertStaleCheckpoint = func(chainID string) *prometheus.GaugeVec {
		return promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "indexer",
			Name:        "stale_checkpoint",
			Help:        "Shows checkpoints that did not advance for longer than the threshold, value is the age in seconds.",
			ConstLabels: prometheus.Labels{"chain_id": chainID},
		}, []string{"address", "aggregation_type", "last_block"})
	}
	NewAlertLaggingRewards = func(chainID string) *prometheus.GaugeVec {
		return promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "indexer",
			Name:        "lagging_rewards",
			Help:        "Shows vaults with positions whose reward clock is behind by more than the threshold, value is the largest lag in seconds.",
			ConstLabels: prometheus.Labels{"chain_id": chainID},
		}, []string{"vault_address", "count"})
	}
)
