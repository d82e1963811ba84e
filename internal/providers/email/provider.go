package email

import "context"

// Provider delivers transactional mail.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
