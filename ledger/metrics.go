package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "ledger",
		Name:      "reconciliation_drift_total",
		Help:      "Withdrawals and transfers that burned more shares than the ledger tracks for the user.",
	}, []string{"vault"})
	PositionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "ledger",
		Name:      "positions_opened_total",
	}, []string{"vault"})
	PositionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "ledger",
		Name:      "positions_closed_total",
	}, []string{"vault"})
)
