package llm

import (
	"context"
	"fmt"

	"github.com/mi42hq/mi42/internal/observability/logger"
)

// noopProvider answers with a canned placeholder. Active when no API key is
// configured so local environments work end to end without model access.
type noopProvider struct{}

func (noopProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	logger.FromContext(ctx).Warn("llm provider not configured, returning placeholder completion")
	return fmt.Sprintf("(kein Modell konfiguriert)\n\nAnfrage: %s", userPrompt), nil
}
