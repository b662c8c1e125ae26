package domain

import "strings"

// Provider identifies an external OAuth identity provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderGitHub  Provider = "github"
	ProviderDiscord Provider = "discord"
	ProviderGitLab  Provider = "gitlab"
)

// ProviderFilterPasswordless is a listing filter, not a provider: users with no linked
// OAuth account.
const ProviderFilterPasswordless = "passwordless"

// Providers lists every provider accepted by OAuth resolution.
var Providers = []Provider{ProviderGoogle, ProviderGitHub, ProviderDiscord, ProviderGitLab}

// ParseProvider normalizes and validates a provider name.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	return p, p.IsValid()
}

// IsValid returns true if the provider is a known valid value.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderDiscord, ProviderGitLab:
		return true
	}
	return false
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// PlaceholderEmail synthesizes a unique address for identities asserted without an email.
func (p Provider) PlaceholderEmail(providerID string) string {
	return providerID + "@" + string(p) + ".oauth"
}

// IsPlaceholderEmail reports whether email is in a provider's placeholder domain.
func IsPlaceholderEmail(email string) bool {
	_, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	p, found := strings.CutSuffix(domain, ".oauth")
	return found && Provider(p).IsValid()
}
