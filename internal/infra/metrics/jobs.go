package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, messagesSweptTotal) }

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_sweep_runs_total",
			Help: "Background sweep runs, labeled by outcome.",
		},
		[]string{"status"}, // 'ok', 'failed', 'skipped'
	)

	messagesSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_swept_total",
			Help: "Expired safe-chat messages physically deleted by the sweep.",
		},
	)
)

func IncSweepRun(status string) {
	sweepRunsTotal.WithLabelValues(norm(status)).Inc()
}

func AddMessagesSwept(n int64) {
	if n > 0 {
		messagesSweptTotal.Add(float64(n))
	}
}
