package ai

import (
	"google.golang.org/genai"

	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
)

// ToProviderRoles maps transcript history to provider contents, user to user and
// assistant to model, preserving order.
func ToProviderRoles(history []adapter.HistoryEntry) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, h := range history {
		role := genai.RoleUser
		if h.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(h.Text, genai.Role(role)))
	}
	return out
}

func buildContents(req adapter.GenerateRequest) []*genai.Content {
	contents := ToProviderRoles(req.History)
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}
