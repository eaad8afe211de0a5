package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	itemsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdb",
			Subsystem: "scheduler",
			Name:      "items_ingested_total",
			Help:      "Number of new items fetched and appended to batch storage",
		},
		[]string{"chat_id"},
	)

	feedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdb",
			Subsystem: "scheduler",
			Name:      "feed_errors_total",
			Help:      "Number of feed requests that failed during ingestion",
		},
		[]string{"chat_id"},
	)

	ticksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tdb",
			Subsystem: "scheduler",
			Name:      "ticks_completed_total",
			Help:      "Number of polling cycles completed",
		},
	)
)

func init() {
	prometheus.MustRegister(itemsIngested)
	prometheus.MustRegister(feedErrors)
	prometheus.MustRegister(ticksCompleted)
}
