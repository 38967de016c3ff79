package port

import "context"

// LLM represents a chat language model.
type LLM interface {
	// GenerateWithSystem generates text from a system and a user message.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// GenerateOptions tunes a single completion. Zero values use the client defaults.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // request a JSON object response
}
