package ai

import (
	"strings"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
)

var _ adapter.IntentClassifier = (*KeywordClassifier)(nil)

// ArchitectModelID is the catalog model that always answers in architect mode.
const ArchitectModelID = "gemini-pro"

const ArchitectInstruction = `You are the Void AI Lead Architect. Deliver complete, production-ready codebases.
When asked for an application, website or non-trivial script:
- Start with a short system overview: stack, state management and component layout.
- Write every file in full inside labelled code blocks (App.tsx, styles.css, utils.ts, ...). Never leave placeholders such as "rest of code".
- Include error handling, loading states and accessibility attributes.
- Prefer a dark, deep-space look with indigo (#6366f1) accents and clean typography.
- For websites include hero, features, pricing, testimonials and a multi-column footer.
Be exhaustive rather than concise.`

const ChatInstruction = `You are Void AI, a friendly and precise assistant. Answer clearly, use Markdown, and put code in fenced blocks with a language tag.`

var architectTriggers = []string{
	"build",
	"website",
	"generate code",
	"write code",
	"landing page",
	"create an app",
	"web app",
	"full app",
}

var imageCommands = []string{"/image", "/img"}

var imagePhrases = []string{
	"generate image",
	"generate an image",
	"create an image",
	"draw me",
	"generate a picture",
}

// KeywordClassifier decides message type, model and cost from keyword triggers.
// It is pure: the same inputs always give the same Intent.
type KeywordClassifier struct {
	ai      config.AIConfig
	credits config.CreditsConfig
}

func NewKeywordClassifier(ai config.AIConfig, credits config.CreditsConfig) *KeywordClassifier {
	return &KeywordClassifier{ai: ai, credits: credits}
}

func (k *KeywordClassifier) Classify(message, modelID string, forceArchitect bool) adapter.Intent {
	if modelID == "" {
		modelID = k.ai.DefaultModel
	}
	text := strings.TrimSpace(message)
	lower := strings.ToLower(text)

	if prompt, ok := imagePrompt(text, lower); ok {
		return adapter.Intent{
			Type:    model.MessageImage,
			ModelID: modelID,
			Model:   k.ai.ImageModel,
			Cost:    k.credits.ImageGeneration,
			Prompt:  prompt,
		}
	}

	in := adapter.Intent{
		Type:              model.MessageText,
		ModelID:           modelID,
		Model:             k.providerModel(modelID),
		SystemInstruction: ChatInstruction,
		Cost:              k.credits.BasicChat,
		Temperature:       k.ai.Temperature,
		MaxOutputTokens:   k.ai.MaxOutputTokens,
		Grounded:          k.ai.Grounding,
		Prompt:            text,
	}
	if forceArchitect || modelID == ArchitectModelID || containsAny(lower, architectTriggers) {
		in.Type = model.MessageCode
		in.Architect = true
		in.SystemInstruction = ArchitectInstruction
		in.Cost = k.credits.CodeGeneration
		in.MaxOutputTokens = k.ai.ArchitectTokens
		in.ThinkingBudget = k.ai.ThinkingBudget
		// search grounding and long code output do not mix
		in.Grounded = false
	}
	return in
}

func (k *KeywordClassifier) providerModel(modelID string) string {
	if name := k.ai.ModelMap[modelID]; name != "" {
		return name
	}
	return k.ai.ModelMap[k.ai.DefaultModel]
}

// imagePrompt detects an explicit image request. A leading command is stripped;
// a phrase trigger keeps the whole text as the prompt.
func imagePrompt(text, lower string) (string, bool) {
	for _, cmd := range imageCommands {
		if !strings.HasPrefix(lower, cmd) {
			continue
		}
		rest := text[len(cmd):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' {
			continue
		}
		if p := strings.TrimSpace(rest); p != "" {
			return p, true
		}
		return "", false
	}
	if containsAny(lower, imagePhrases) {
		return text, true
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
