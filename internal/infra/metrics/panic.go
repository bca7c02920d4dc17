package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		panicTriggersTotal,
		panicDeliveriesTotal,
		panicDeliveryDuration,
	)
}

var (
	panicTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panic_triggers_total",
			Help: "Panic button presses, labeled by aggregate result.",
		},
		[]string{"result"}, // 'delivered', 'no_contacts', 'undelivered'
	)

	// status: delivered|rejected|error|timeout
	panicDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panic_deliveries_total",
			Help: "Per-contact panic alert deliveries by status.",
		},
		[]string{"status"},
	)

	panicDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panic_delivery_duration_seconds",
			Help:    "Per-contact delivery latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)
)

func IncPanicTrigger(result string) {
	panicTriggersTotal.WithLabelValues(norm(result)).Inc()
}

func ObservePanicDelivery(status string, seconds float64) {
	panicDeliveriesTotal.WithLabelValues(norm(status)).Inc()
	panicDeliveryDuration.WithLabelValues(norm(status)).Observe(seconds)
}
