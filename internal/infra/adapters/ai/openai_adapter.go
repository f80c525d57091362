package ai

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIGateway = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIGateway using the Chat Completions API.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	log    *zerolog.Logger
}

func NewOpenAIAdapter(apiKey, baseURL, model string, log *zerolog.Logger) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		log:    log,
	}, nil
}

func (o *OpenAIAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	params := o.params(req)
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ObserveCall("openai", string(params.Model), "generate", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.GenerateResult{}, classify("openai.generate", err, false)
	}

	text := ""
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			text = c.Message.Content
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = EmptyResponseText
	}
	metrics.AddTokensOut("openai", string(params.Model), int(resp.Usage.CompletionTokens))
	return adapter.GenerateResult{Text: text}, nil
}

func (o *OpenAIAdapter) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	params := o.params(req)
	return func(yield func(string, error) bool) {
		start := time.Now()
		stream := o.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				metrics.ObserveCall("openai", string(params.Model), "stream", time.Since(start).Milliseconds(), true)
				return
			}
		}
		err := stream.Err()
		metrics.ObserveCall("openai", string(params.Model), "stream", time.Since(start).Milliseconds(), err == nil)
		if err != nil {
			yield("", classify("openai.stream", err, true))
		}
	}
}

func (o *OpenAIAdapter) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		metrics.ObserveCall("openai", "dall-e-3", "image", time.Since(start).Milliseconds(), false)
		return "", classify("openai.image", err, false)
	}
	for _, img := range resp.Data {
		if img.B64JSON != "" {
			metrics.ObserveCall("openai", "dall-e-3", "image", time.Since(start).Milliseconds(), true)
			return "data:image/png;base64," + img.B64JSON, nil
		}
	}
	metrics.ObserveCall("openai", "dall-e-3", "image", time.Since(start).Milliseconds(), false)
	return "", domain.NewProviderError("openai.image", domain.ErrNoImageData)
}

func (o *OpenAIAdapter) params(req adapter.GenerateRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemInstruction != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemInstruction))
	}
	for _, h := range req.History {
		if h.Role == model.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(h.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(h.Text))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelOrDefault(req.Model, o.model)),
		Messages:    msgs,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	return p
}
