package notifications

import (
	"context"

	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

// LogMailer records outbound mail in the application log instead of sending
// it. Used when no SMTP relay is configured, typically in development.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds a mailer that only logs.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		}), "mail suppressed, smtp not configured")
	}
	return nil
}
