package ai

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"void-ai-chat/internal/domain/ports/adapter"
)

var _ adapter.AIGateway = (*NoopAIAdapter)(nil)

// tiny 1x1 png
const noopImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// NoopAIAdapter echoes prompts for local/dev runs without a provider key.
type NoopAIAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopAIAdapter(log *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{delay: 40 * time.Millisecond, log: log}
}

func (a *NoopAIAdapter) reply(req adapter.GenerateRequest) string {
	return "You said: " + req.Prompt
}

func (a *NoopAIAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return adapter.GenerateResult{}, classify("noop.generate", ctx.Err(), false)
	}
	a.log.Debug().Str("model", req.Model).Msg("[noop-ai] generate")
	return adapter.GenerateResult{Text: a.reply(req)}, nil
}

// GenerateStream yields the echo word by word.
func (a *NoopAIAdapter) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		words := strings.SplitAfter(a.reply(req), " ")
		for _, w := range words {
			select {
			case <-time.After(a.delay):
			case <-ctx.Done():
				yield("", classify("noop.stream", ctx.Err(), true))
				return
			}
			if w == "" {
				continue
			}
			if !yield(w, nil) {
				return
			}
		}
	}
}

func (a *NoopAIAdapter) GenerateImage(ctx context.Context, prompt string) (string, error) {
	a.log.Debug().Msg("[noop-ai] image")
	return noopImage, nil
}
