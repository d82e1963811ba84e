package llm

import (
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("llm",
	fx.Provide(func(cfg config.Config, m *metrics.Metrics, log *zap.Logger) Provider {
		if cfg.LLM.APIKey == "" {
			log.Warn("LLM_API_KEY not set, completions are stubbed")
			return noopProvider{}
		}
		return newOpenAIProvider(cfg.LLM, m)
	}),
)
