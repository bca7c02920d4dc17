package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatAccessTotal, chatMessagesTotal) }

var (
	// Internal reasons only; callers always see the same "not found" shape.
	chatAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safe_chat_access_total",
			Help: "Safe chat access decisions by outcome.",
		},
		[]string{"op", "outcome"}, // outcome: granted|missing|not_participant|bad_pin|throttled|blocked
	)

	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safe_chat_messages_total",
			Help: "Messages stored in safe chats, labeled by whether auto-delete was set.",
		},
		[]string{"auto_delete"},
	)
)

func IncChatAccess(op, outcome string) {
	chatAccessTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
}

func IncChatMessage(autoDelete bool) {
	v := "false"
	if autoDelete {
		v = "true"
	}
	chatMessagesTotal.WithLabelValues(v).Inc()
}
