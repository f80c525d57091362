package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatTurnsTotal, chatCreditsSpent) }

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Completed conversation turns by message type and terminal outcome.",
		},
		[]string{"type", "outcome"}, // outcome: finalized|fallback|errored
	)

	chatCreditsSpent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_credits_spent_total",
			Help: "Credits deducted from the profile.",
		},
	)
)

func IncTurn(msgType, outcome string) {
	chatTurnsTotal.WithLabelValues(norm(msgType), norm(outcome)).Inc()
}

func AddCreditsSpent(n int) {
	if n > 0 {
		chatCreditsSpent.Add(float64(n))
	}
}
