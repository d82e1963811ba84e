package email

import (
	"context"

	"github.com/mi42hq/mi42/internal/observability/logger"
	"go.uber.org/zap"
)

// consoleProvider logs mail instead of delivering it. Used in development
// when no SMTP host is configured.
type consoleProvider struct{}

func (consoleProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.FromContext(ctx).Info("email (console delivery)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}
