// Package device turns a User-Agent header into a short label for audit trails.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Info is the parsed, coarse view of a client.
type Info struct {
	Label  string // "Firefox on Linux"
	Mobile bool
	Bot    bool
}

// Parse extracts browser, OS and form factor. Unknown parts are named explicitly
// so audit consumers never see empty fields.
func Parse(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{Label: "Unknown Device"}
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return Info{
		Label:  strings.TrimSpace(browser + " on " + os),
		Mobile: ua.Mobile(),
		Bot:    ua.Bot(),
	}
}
