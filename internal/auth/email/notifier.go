package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"warden/pkg/platform/privacy"
)

// Failures are counted by the caller's metrics hook, if any.
type FailureCounter interface {
	EmailFailed(kind string)
}

// Notifier renders and sends the account lifecycle emails.
type Notifier struct {
	sender   Sender
	appName  string
	logger   *slog.Logger
	failures FailureCounter
	timeout  time.Duration
}

type NotifierOption func(*Notifier)

func WithFailureCounter(c FailureCounter) NotifierOption {
	return func(n *Notifier) { n.failures = c }
}

// WithSendTimeout bounds a single delivery attempt.
func WithSendTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.timeout = d }
}

func NewNotifier(sender Sender, appName string, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{sender: sender, appName: appName, logger: logger, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type view struct {
	AppName  string
	Code     string
	Username string
	Minutes  int
}

const (
	KindVerification = "email_verification"
	KindLoginCode    = "login_code"
	KindPending      = "pending_activation"
	KindActivated    = "activated"
)

func (n *Notifier) SendEmailVerification(ctx context.Context, to, code string, ttl time.Duration) {
	n.send(ctx, KindVerification, to, "Verify your email for "+n.appName,
		view{AppName: n.appName, Code: code, Minutes: int(ttl.Minutes())})
}

func (n *Notifier) SendLoginCode(ctx context.Context, to, code string, ttl time.Duration) {
	n.send(ctx, KindLoginCode, to, "Your login code for "+n.appName,
		view{AppName: n.appName, Code: code, Minutes: int(ttl.Minutes())})
}

func (n *Notifier) SendPendingActivation(ctx context.Context, to, username string) {
	n.send(ctx, KindPending, to, "Email verified - Activation pending",
		view{AppName: n.appName, Username: username})
}

func (n *Notifier) SendActivated(ctx context.Context, to string) {
	n.send(ctx, KindActivated, to, fmt.Sprintf("Your %s account is active", n.appName),
		view{AppName: n.appName})
}

func (n *Notifier) send(ctx context.Context, kind, to, subject string, v view) {
	msg, err := render(ctx, kind, v)
	if err != nil {
		n.fail(ctx, kind, to, err)
		return
	}
	msg.To = to
	msg.Subject = subject

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.fail(ctx, kind, to, err)
	}
}

func (n *Notifier) fail(ctx context.Context, kind, to string, err error) {
	n.logger.ErrorContext(ctx, "failed to send email",
		"kind", kind,
		"to", privacy.MaskEmail(to),
		"error", err,
	)
	if n.failures != nil {
		n.failures.EmailFailed(kind)
	}
}

func render(ctx context.Context, kind string, v view) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, kind, v); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	body, ok := htmlBodies[kind]
	if !ok {
		return Message{}, fmt.Errorf("render %s html: unknown kind", kind)
	}
	if err := body(v).Render(ctx, &html); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Message{Text: text.String(), HTML: html.String()}, nil
}

// Plain-text bodies. HTML bodies are the components in templates.go.
var textTemplates = template.Must(template.New("text").Parse(`
{{define "email_verification"}}Your email verification code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.{{end}}
{{define "login_code"}}Your login code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.{{end}}
{{define "pending_activation"}}Hello {{.Username}},

Your email has been successfully verified!

Your account is now pending activation by an administrator. This typically takes 1-3 days.

You will receive another email once your account is activated and you can start logging in.{{end}}
{{define "activated"}}Your {{.AppName}} account has been activated. You can now log in.{{end}}
`))
