// Package notifier delivers transactional email such as password reset links.
package notifier

import (
	"context"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
)

// ErrThrottled is returned when a recipient has been sent too many emails.
var ErrThrottled = auth.ErrMailThrottled

var (
	_ auth.Mailer = (*SMTPMailer)(nil)
	_ auth.Mailer = (*LogMailer)(nil)
	_ auth.Mailer = (*Throttle)(nil)
)

// LogMailer writes reset links to the log instead of sending them.
// It is used when no SMTP server is configured.
type LogMailer struct{}

// SendPasswordReset logs the link.
func (LogMailer) SendPasswordReset(_ context.Context, to, name, link string) error {
	logger.Infof("password reset for %s <%s>: %s", name, to, link)
	metrics.EmailsSentTotal.WithLabelValues("logged").Inc()
	return nil
}
