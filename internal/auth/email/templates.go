package email

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const layoutHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.code { font-size: 32px; font-weight: bold; letter-spacing: 5px; color: #2563eb; text-align: center; }
.footer { margin-top: 30px; font-size: 12px; color: #666; }
</style></head><body><div class="container">
`

// htmlBodies maps a notification kind to its HTML component.
var htmlBodies = map[string]func(view) templ.Component{
	KindVerification: verificationEmail,
	KindLoginCode:    loginCodeEmail,
	KindPending:      pendingActivationEmail,
	KindActivated:    activatedEmail,
}

// fragment writes format with every string argument HTML-escaped.
func fragment(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		escaped := make([]any, len(args))
		for i, a := range args {
			if str, ok := a.(string); ok {
				a = templ.EscapeString(str)
			}
			escaped[i] = a
		}
		_, err := fmt.Fprintf(w, format, escaped...)
		return err
	})
}

func layout(appName string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, layoutHead); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return fragment(`<div class="footer"><p>This is an automated message from %s. Please do not reply to this email.</p></div></div></body></html>`,
			appName).Render(ctx, w)
	})
}

func verificationEmail(v view) templ.Component {
	return layout(v.AppName, fragment(`<h2>Welcome to %s!</h2>
<p>Please verify your email address by entering the code below:</p>
<div class="code">%s</div>
<p><strong>This code will expire in %d minutes.</strong></p>
<p>After verification, an administrator will review and activate your account.</p>
`, v.AppName, v.Code, v.Minutes))
}

func loginCodeEmail(v view) templ.Component {
	return layout(v.AppName, fragment(`<h2>Login Code</h2>
<p>You requested a login code for <strong>%s</strong>.</p>
<div class="code">%s</div>
<p><strong>This code will expire in %d minutes.</strong></p>
<p>If you didn't request this code, you can safely ignore this email.</p>
`, v.AppName, v.Code, v.Minutes))
}

func pendingActivationEmail(v view) templ.Component {
	return layout(v.AppName, fragment(`<h2>Email Verified</h2>
<p>Hello <strong>%s</strong>,</p>
<p>Your account is now pending activation by an administrator. This typically takes 1-3 days.</p>
`, v.Username))
}

func activatedEmail(v view) templ.Component {
	return layout(v.AppName, fragment(`<h2>Account Activated</h2>
<p>Your %s account is active. You can now log in.</p>
`, v.AppName))
}
