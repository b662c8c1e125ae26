package models

import "time"

// EndpointClass groups routes that share a throttle budget.
type EndpointClass string

const (
	// ClassCredential: code-issuing endpoints (3 req / 5 min) - /auth/register, /auth/login
	ClassCredential EndpointClass = "credential"
	// ClassVerify: code and assertion checks (10 req/min) - /auth/verify-email, /auth/verify-login, /auth/oauth
	ClassVerify EndpointClass = "verify"
	// ClassAdmin: status changes (20 req/min) - /auth/activate, /auth/deactivate
	ClassAdmin EndpointClass = "admin"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassCredential, ClassVerify, ClassAdmin:
		return true
	}
	return false
}

// Key identifies one throttle bucket: a route of a class, seen from one client IP.
func Key(class EndpointClass, route, ip string) string {
	return "rl:" + string(class) + ":" + route + ":" + ip
}

type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds.
func RetryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	seconds := int(wait / time.Second)
	if wait%time.Second != 0 {
		seconds++
	}
	return seconds
}

type RateLimitExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"` // seconds
}
