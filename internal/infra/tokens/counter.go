package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/domain/ports/adapter"
)

// perEntryOverhead approximates role and separator tokens per history entry.
const perEntryOverhead = 4

// Counter measures text in tokens and trims history to a budget.
type Counter struct {
	count func(string) int
}

// NewCounter uses the cl100k_base encoding. If the encoding cannot be loaded
// (it is fetched on first use) the counter falls back to Estimate.
func NewCounter(log *zerolog.Logger) *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("tiktoken unavailable; using heuristic token estimate")
		return NewEstimator()
	}
	return &Counter{count: func(s string) int { return len(enc.Encode(s, nil, nil)) }}
}

// NewEstimator never touches the network.
func NewEstimator() *Counter { return &Counter{count: Estimate} }

// Estimate blends a word count with the ~4 chars/token rule.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)
	n := (words + chars/4) / 2
	if n == 0 {
		n = 1
	}
	return n
}

func (c *Counter) Count(text string) int { return c.count(text) }

// Trim keeps the most recent entries whose total fits budget, preserving order.
// A non-positive budget disables trimming.
func (c *Counter) Trim(history []adapter.HistoryEntry, budget int) []adapter.HistoryEntry {
	if budget <= 0 || len(history) == 0 {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := c.count(history[i].Text) + perEntryOverhead
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}
