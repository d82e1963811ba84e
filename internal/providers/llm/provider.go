package llm

import "context"

// Provider generates text completions from a system and user prompt pair.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
