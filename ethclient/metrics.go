package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "request_results_total",
	}, []string{"chain_id", "query", "status"})

	RequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
	}, []string{"chain_id", "query"})
)

func ObserveError(chainID, query string, err error) {
	var rpcErr rpc.Error
	switch {
	case err == nil:
		RequestResults.WithLabelValues(chainID, query, "ok").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		RequestResults.WithLabelValues(chainID, query, "timeout").Inc()
	case errors.Is(err, ErrNodeIsNotSynced):
		RequestResults.WithLabelValues(chainID, query, "not-synced").Inc()
	case errors.As(err, &rpcErr):
		RequestResults.WithLabelValues(chainID, query, fmt.Sprintf("error-%d", rpcErr.ErrorCode())).Inc()
	default:
		RequestResults.WithLabelValues(chainID, query, "error").Inc()
	}
}

func ObserveDuration(chainID, query string) func() time.Duration {
	return prometheus.NewTimer(RequestDurations.WithLabelValues(chainID, query)).ObserveDuration
}
