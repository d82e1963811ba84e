package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"go.uber.org/zap"
)

type smtpProvider struct {
	cfg     config.SMTPConfig
	metrics *metrics.Metrics
}

func newSMTPProvider(cfg config.SMTPConfig, m *metrics.Metrics) Provider {
	return &smtpProvider{cfg: cfg, metrics: m}
}

func (p *smtpProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}

	msg := buildMessage(p.cfg.From, to, subject, htmlBody)
	if err := smtp.SendMail(addr, auth, p.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	p.metrics.RecordEmailSent(ctx, "smtp")
	logger.FromContext(ctx).Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
