package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "event_log",
		Name:      "events_handled_total",
		Help:      "Workout events recorded, by event type and workout kind.",
	}, []string{"event_type", "kind"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "event_log",
		Name:      "handler_errors_total",
		Help:      "Workout events left uncommitted after a handler failure.",
	}, []string{"event_type", "kind"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "event_log",
		Name:      "events_rejected_total",
		Help:      "Messages skipped because they are not valid workout events, by reason.",
	}, []string{"topic", "reason"})

	lastEventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "event_log",
		Name:      "last_event_timestamp_seconds",
		Help:      "Broker timestamp of the newest recorded event, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(handledCounter, handlerErrorCounter, rejectedCounter, lastEventGauge)
}

func kindLabel(evt Event) string {
	if evt.Kind == "" {
		return "none"
	}
	return string(evt.Kind)
}

func recordHandled(evt Event) {
	handledCounter.WithLabelValues(evt.EventType, kindLabel(evt)).Inc()
	if !evt.Timestamp.IsZero() {
		lastEventGauge.WithLabelValues(evt.EventType).Set(float64(evt.Timestamp.Unix()))
	}
}

func recordHandlerError(evt Event) {
	handlerErrorCounter.WithLabelValues(evt.EventType, kindLabel(evt)).Inc()
}

func recordRejected(topic, reason string) {
	rejectedCounter.WithLabelValues(topic, reason).Inc()
}
