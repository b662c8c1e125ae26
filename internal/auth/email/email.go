// Package email delivers account notifications. Delivery is best effort:
// callers log failures and carry on, since the state change that triggered
// the message is already stored.
package email

import (
	"context"
	"errors"
	"log/slog"

	"warden/pkg/platform/privacy"
)

// Message is a single outgoing email. At least one of Text or HTML is set.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	ErrNoRecipient  = errors.New("email has no recipient")
	ErrCircuitOpen  = errors.New("email provider circuit open")
	ErrProviderFail = errors.New("email provider rejected message")
)

// LogSender drops messages after logging them. It stands in when no provider
// is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.WarnContext(ctx, "email provider not configured, skipping send",
		"to", privacy.MaskEmail(msg.To),
		"subject", msg.Subject,
	)
	return nil
}
