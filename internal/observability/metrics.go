package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "snapshot",
		Name:      "last_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful snapshot write.",
	})
	snapshotWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "snapshot",
		Name:      "writes_total",
		Help:      "Number of successful snapshot writes.",
	})
	snapshotFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "snapshot",
		Name:      "write_failures_total",
		Help:      "Number of snapshot writes that failed.",
	})
	snapshotCorrupt = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "snapshot",
		Name:      "corrupt_loads_total",
		Help:      "Number of loads that found unreadable snapshot data.",
	})
	workoutsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "log",
		Name:      "workouts",
		Help:      "Workouts currently held in the log by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(snapshotPersistGauge, snapshotWrites, snapshotFailures, snapshotCorrupt, workoutsGauge)
}

// RecordSnapshotPersisted updates the write counter, the watermark gauge and
// the per-kind workout counts.
func RecordSnapshotPersisted(ts time.Time, counts map[string]int) {
	snapshotWrites.Inc()
	if !ts.IsZero() {
		snapshotPersistGauge.Set(float64(ts.Unix()))
	}
	RecordWorkoutCounts(counts)
}

// RecordSnapshotFailure counts a failed snapshot write.
func RecordSnapshotFailure() {
	snapshotFailures.Inc()
}

// RecordCorruptSnapshot counts a load that discarded corrupt data.
func RecordCorruptSnapshot() {
	snapshotCorrupt.Inc()
}

// RecordWorkoutCounts sets the workouts gauge for each kind.
func RecordWorkoutCounts(counts map[string]int) {
	for kind, n := range counts {
		workoutsGauge.WithLabelValues(kind).Set(float64(n))
	}
}
