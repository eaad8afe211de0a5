package tracker

import "github.com/prometheus/client_golang/prometheus"

var (
	trackedItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_items",
			Help: "Number of items currently in the tracking window",
		},
	)

	evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_evictions_total",
			Help: "Total number of tracking entries evicted, by reason",
		},
		[]string{"reason"},
	)

	mutations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_mutations_total",
			Help: "Total number of tracked-item mutations recorded",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(trackedItems)
	prometheus.MustRegister(evictions)
	prometheus.MustRegister(mutations)
}
