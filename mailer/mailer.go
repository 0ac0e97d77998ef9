package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Mailer hands transactional mail to whatever delivers it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// Log writes the mail to the log instead of sending it. It is the only Mailer until an
// email provider is configured.
type Log struct {
	log *zap.SugaredLogger
}

func NewLog(log *zap.SugaredLogger) *Log {
	return &Log{log: log}
}

func (m *Log) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.log.Infow("password reset requested", "to", to, "url", resetURL)
	return nil
}
