package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"warden/pkg/platform/circuit"
	"warden/pkg/platform/privacy"
)

const DefaultResendURL = "https://api.resend.com/emails"

// HTTPDoer is the part of *http.Client the sender needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ResendConfig struct {
	APIKey     string
	From       string
	URL        string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Breaker    *circuit.Breaker
}

// ResendSender posts messages to the Resend HTTP API. Repeated upstream
// failures open the breaker and later sends fail fast until it cools down.
type ResendSender struct {
	apiKey  string
	from    string
	url     string
	client  HTTPDoer
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewResendSender(cfg ResendConfig, logger *slog.Logger) *ResendSender {
	if cfg.URL == "" {
		cfg.URL = DefaultResendURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuit.New("resend")
	}
	return &ResendSender{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		url:     cfg.URL,
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}

	err := s.post(ctx, msg)
	if err != nil {
		if s.breaker.RecordFailure() {
			s.logger.WarnContext(ctx, "email circuit opened", "breaker", s.breaker.Name())
		}
		return err
	}
	if s.breaker.RecordSuccess() {
		s.logger.InfoContext(ctx, "email circuit closed", "breaker", s.breaker.Name())
	}
	s.logger.InfoContext(ctx, "email sent", "to", privacy.MaskEmail(msg.To), "subject", msg.Subject)
	return nil
}

func (s *ResendSender) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(resendPayload{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best-effort detail
		return fmt.Errorf("%w: status %d: %s", ErrProviderFail, resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
	return nil
}
