// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/metrics"
)

var _ adapter.AIGateway = (*GeminiAdapter)(nil)

// EmptyResponseText replaces an empty non-streaming answer.
const EmptyResponseText = "Response returned empty."

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	imageModel   string
	log          *zerolog.Logger
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel, imageModel string, log *zerolog.Logger) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, imageModel: imageModel, log: log}, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	name := modelOrDefault(req.Model, g.defaultModel)
	start := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, name, buildContents(req), g.config(req))
	metrics.ObserveCall("gemini", name, "generate", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.GenerateResult{}, classify("gemini.generate", err, false)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		text = EmptyResponseText
	}
	if resp.UsageMetadata != nil {
		metrics.AddTokensOut("gemini", name, int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return adapter.GenerateResult{Text: text, Sources: groundingSources(resp)}, nil
}

func (g *GeminiAdapter) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	name := modelOrDefault(req.Model, g.defaultModel)
	return func(yield func(string, error) bool) {
		start := time.Now()
		ok := true
		defer func() {
			metrics.ObserveCall("gemini", name, "stream", time.Since(start).Milliseconds(), ok)
		}()

		for resp, err := range g.client.Models.GenerateContentStream(ctx, name, buildContents(req), g.config(req)) {
			if err != nil {
				ok = false
				yield("", classify("gemini.stream", err, true))
				return
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (g *GeminiAdapter) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), nil)
	if err != nil {
		metrics.ObserveCall("gemini", g.imageModel, "image", time.Since(start).Milliseconds(), false)
		return "", classify("gemini.image", err, false)
	}
	uri, ok := inlineImage(resp)
	metrics.ObserveCall("gemini", g.imageModel, "image", time.Since(start).Milliseconds(), ok)
	if !ok {
		return "", domain.NewProviderError("gemini.image", domain.ErrNoImageData)
	}
	return uri, nil
}

func (g *GeminiAdapter) config(req adapter.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget))}
	}
	if req.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

func groundingSources(resp *genai.GenerateContentResponse) []model.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []model.GroundingSource
	for _, ch := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if ch == nil || ch.Web == nil || ch.Web.URI == "" {
			continue
		}
		out = append(out, model.GroundingSource{Title: ch.Web.Title, URI: ch.Web.URI})
	}
	return out
}

// inlineImage returns the first inline payload as a data URI.
func inlineImage(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return dataURI(part.InlineData.MIMEType, part.InlineData.Data), true
		}
	}
	return "", false
}

func dataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
