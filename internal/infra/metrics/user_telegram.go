package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramCommandsReceivedTotal,
		telegramRejectedTotal,
		wsClientsConnected,
	)
}

var (
	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from the owner chat.",
		},
		[]string{"command"},
	)

	telegramRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rejected_total",
			Help: "Updates dropped because they did not come from the owner chat.",
		},
	)

	wsClientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_clients_connected",
			Help: "Websocket clients currently subscribed to the event feed.",
		},
	)
)

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncTelegramRejected() {
	telegramRejectedTotal.Inc()
}

func SetWSClients(n int) {
	wsClientsConnected.Set(float64(n))
}
