package rewards

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var PointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indexer",
	Subsystem: "rewards",
	Name:      "points_credited_total",
	Help:      "Points credited to user accounts, by category.",
}, []string{"category"})
