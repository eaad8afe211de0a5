package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	recordsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_records_appended_total",
			Help: "Total number of records written to batch segments",
		},
		[]string{"chat_id"},
	)

	segmentsRolled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_segments_rolled_total",
			Help: "Total number of active-segment rollovers",
		},
		[]string{"chat_id"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(recordsAppended)
	prometheus.MustRegister(segmentsRolled)
}
