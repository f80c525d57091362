package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensOut,
		aiCallsLatencyMs,
		aiPrecheckBlocks,
		aiStreamFragments,
		aiStreamFallbacks,
	)
}

var (
	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of estimated completion tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000, 60000},
		},
		[]string{"provider", "model", "op", "success"}, // op: generate|stream|image
	)

	aiPrecheckBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_precheck_blocks",
			Help: "Turns rejected before any provider call, by reason.",
		},
		[]string{"reason"}, // credits|premium
	)

	aiStreamFragments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_stream_fragments_total",
			Help: "Fragments received from streaming calls.",
		},
		[]string{"model"},
	)

	aiStreamFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_stream_fallbacks_total",
			Help: "Streaming failures recovered (or not) by a non-streaming retry.",
		},
		[]string{"model", "recovered"},
	)
)

func PrecheckBlocked(reason string) {
	aiPrecheckBlocks.WithLabelValues(norm(reason)).Inc()
}

func ObserveCall(provider, model, op string, latencyMs int64, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), norm(op), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AddTokensOut(provider, model string, n int) {
	if n <= 0 {
		return
	}
	aiTokensOut.WithLabelValues(norm(provider), norm(model)).Add(float64(n))
}

func AddStreamFragments(model string, n int) {
	if n <= 0 {
		return
	}
	aiStreamFragments.WithLabelValues(norm(model)).Add(float64(n))
}

func IncStreamFallback(model string, recovered bool) {
	aiStreamFallbacks.WithLabelValues(norm(model), strconv.FormatBool(recovered)).Inc()
}
