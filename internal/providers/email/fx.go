package email

import (
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("email",
	fx.Provide(func(cfg config.Config, m *metrics.Metrics, log *zap.Logger) Provider {
		if cfg.SMTP.Host == "" {
			log.Warn("SMTP_HOST not set, mail delivery falls back to console logging")
			return consoleProvider{}
		}
		return newSMTPProvider(cfg.SMTP, m)
	}),
)
