package publish

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "publish",
		Name:      "events_published_total",
		Help:      "Number of workout events written to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "publish",
		Name:      "events_failed_total",
		Help:      "Number of workout events that could not be published, labeled by event type.",
	}, []string{"event_type"})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapty",
		Subsystem: "publish",
		Name:      "publish_duration_seconds",
		Help:      "Time spent resolving the schema and writing one event.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "publish",
		Name:      "events_dropped_total",
		Help:      "Number of workout events discarded because the dispatch queue was full.",
	}, []string{"event_type"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "publish",
		Name:      "queue_depth",
		Help:      "Events waiting for background delivery.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, failedCounter, publishDuration, droppedCounter, queueDepth)
}
