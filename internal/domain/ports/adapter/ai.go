// File: internal/domain/ports/adapter/ai.go
package adapter

import (
	"context"
	"iter"

	"void-ai-chat/internal/domain/model"
)

// HistoryEntry is one prior transcript turn sent as provider context.
type HistoryEntry struct {
	Role model.Role `json:"role"`
	Text string     `json:"text"`
}

// GenerateRequest is a fully resolved provider call. ModelID is the logical
// catalog id, Model the concrete provider model name.
type GenerateRequest struct {
	Prompt            string
	ModelID           string
	Model             string
	SystemInstruction string
	History           []HistoryEntry
	Temperature       float32
	MaxOutputTokens   int
	ThinkingBudget    int
	Grounded          bool
}

type GenerateResult struct {
	Text    string
	Sources []model.GroundingSource
}

// AIGateway is the port for the hosted generative provider.
//
// GenerateStream yields non-empty fragments in arrival order. On failure it
// yields exactly one error and stops. The sequence is not restartable.
type AIGateway interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest) iter.Seq2[string, error]
	// GenerateImage returns a data:<mime>;base64,<payload> URI.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Intent is the classification of one user message.
type Intent struct {
	Type              model.MessageType
	Architect         bool
	ModelID           string
	Model             string
	SystemInstruction string
	Cost              int
	Temperature       float32
	MaxOutputTokens   int
	ThinkingBudget    int
	Grounded          bool
	// Prompt is the text to send upstream; image triggers are stripped.
	Prompt string
}

// Request builds the provider request for a text intent.
func (i Intent) Request(history []HistoryEntry) GenerateRequest {
	return GenerateRequest{
		Prompt:            i.Prompt,
		ModelID:           i.ModelID,
		Model:             i.Model,
		SystemInstruction: i.SystemInstruction,
		History:           history,
		Temperature:       i.Temperature,
		MaxOutputTokens:   i.MaxOutputTokens,
		ThinkingBudget:    i.ThinkingBudget,
		Grounded:          i.Grounded,
	}
}

// IntentClassifier must be pure and deterministic.
type IntentClassifier interface {
	Classify(message, modelID string, forceArchitect bool) Intent
}
