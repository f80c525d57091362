package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storageFailuresTotal, storageWritesTotal) }

var (
	storageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_failures_total",
			Help: "Failed or unreadable state records by operation.",
		},
		[]string{"op"}, // load_chats|save_chats|load_profile|save_profile|decode_*
	)

	storageWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_writes_total",
			Help: "State writes executed and writes coalesced away, by key.",
		},
		[]string{"key", "result"}, // result: written|coalesced
	)
)

func IncStorageFailure(op string) {
	storageFailuresTotal.WithLabelValues(norm(op)).Inc()
}

func IncStorageWrite(key, result string) {
	storageWritesTotal.WithLabelValues(norm(key), norm(result)).Inc()
}
