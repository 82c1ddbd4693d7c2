package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var DispatchedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indexer",
	Subsystem: "dispatcher",
	Name:      "events_total",
	Help:      "Dispatched logs by aggregation type and outcome.",
}, []string{"aggregation_type", "status"})
