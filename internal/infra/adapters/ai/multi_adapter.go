// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/ports/adapter"
)

var _ adapter.AIGateway = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to a provider by the concrete model name.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "gemini" or "openai"
	imageProvider   string
	byProvider      map[string]adapter.AIGateway
	modelToProvider map[string]string // provider model -> provider ("openai" | "gemini")
}

// NewMultiAIAdapter only knows a default provider; each provider adapter owns
// its default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIGateway,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	m := &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
	m.imageProvider = "gemini"
	if byProvider["gemini"] == nil {
		m.imageProvider = m.defaultProvider
	}
	return m
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(provider string) (adapter.AIGateway, string) {
	if a := m.byProvider[provider]; a != nil {
		return a, provider
	}
	// last resort: default provider, then any
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a, m.defaultProvider
	}
	for name, a := range m.byProvider {
		if a != nil {
			return a, name
		}
	}
	return nil, ""
}

// route picks the adapter for req. A model name that belongs to a missing
// provider is cleared so the substitute answers with its own default model.
func (m *MultiAIAdapter) route(req adapter.GenerateRequest) (adapter.AIGateway, adapter.GenerateRequest) {
	want := m.resolveProvider(req.Model)
	a, got := m.pick(want)
	if a != nil && got != want {
		req.Model = ""
	}
	return a, req
}

func noProvider(op, model string) error {
	return domain.NewProviderError(op, fmt.Errorf("no provider configured for model %q", model))
}

func (m *MultiAIAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	a, routed := m.route(req)
	if a == nil {
		return adapter.GenerateResult{}, noProvider("generate", req.Model)
	}
	return a.Generate(ctx, routed)
}

func (m *MultiAIAdapter) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	a, routed := m.route(req)
	if a == nil {
		return func(yield func(string, error) bool) {
			yield("", domain.NewStreamError("stream", fmt.Errorf("no provider configured for model %q", req.Model)))
		}
	}
	return a.GenerateStream(ctx, routed)
}

func (m *MultiAIAdapter) GenerateImage(ctx context.Context, prompt string) (string, error) {
	a, _ := m.pick(m.imageProvider)
	if a == nil {
		return "", noProvider("image", "image")
	}
	return a.GenerateImage(ctx, prompt)
}
