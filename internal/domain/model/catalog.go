package model

// ModelInfo describes a logical model offered to the user. Provider model
// names are resolved from configuration, not stored here.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPremium   bool   `json:"isPremium"`
	Badge       string `json:"badge,omitempty"`
}

var Catalog = []ModelInfo{
	{
		ID:          "gemini-pro",
		Name:        "Gemini 3 Pro",
		Description: "Reasoning core for architect-level code generation and complex problem solving.",
		Badge:       "ARCHITECT",
	},
	{
		ID:          "void-4",
		Name:        "Void AI 4.0",
		Description: "Fast and versatile for coding and everyday questions.",
		Badge:       "FAST",
	},
	{
		ID:          "gpt-4",
		Name:        "GPT-4 Turbo",
		Description: "Advanced reasoning and world knowledge.",
		IsPremium:   true,
	},
	{
		ID:          "claude-3-5",
		Name:        "Claude 3.5 Sonnet",
		Description: "Articulate and helpful for writing and analysis.",
		IsPremium:   true,
	},
}

// LookupModel finds a catalog entry by logical id.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// QuickAction is a canned prompt offered on an empty transcript.
type QuickAction struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
}

var QuickActions = []QuickAction{
	{Icon: "🌱", Title: "Learn Something", Prompt: "Can you explain how a sunset works in a simple way?", Description: "Simple explanations"},
	{Icon: "✨", Title: "Get Creative", Prompt: "Help me write a friendly greeting for my new neighbor.", Description: "Creative writing"},
	{Icon: "💻", Title: "Web Magic", Prompt: "Show me a simple and beautiful website layout for a small plant shop.", Description: "Beautiful designs"},
	{Icon: "🌈", Title: "Just Chat", Prompt: "Tell me something interesting and positive today!", Description: "Friendly talk"},
}
