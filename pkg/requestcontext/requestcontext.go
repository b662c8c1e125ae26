// Package requestcontext carries request-scoped values (request id, authenticated
// principal, client metadata, request time) through context.Context.
package requestcontext

import (
	"context"
	"time"

	id "warden/pkg/domain"
)

type (
	ctxKeyRequestID struct{}
	ctxKeyUserID    struct{}
	ctxKeyIsAdmin   struct{}
	ctxKeyClientIP  struct{}
	ctxKeyUserAgent struct{}
	ctxKeyTime      struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, requestID)
}

// RequestID returns the request id or "" outside HTTP requests.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, userID)
}

// UserID returns the authenticated user id, or a nil id when unauthenticated.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(ctxKeyUserID{}).(id.UserID)
	return v
}

// WithIsAdmin stores the admin flag read from the live account record.
func WithIsAdmin(ctx context.Context, isAdmin bool) context.Context {
	return context.WithValue(ctx, ctxKeyIsAdmin{}, isAdmin)
}

func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyIsAdmin{}).(bool)
	return v
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP{}, clientIP)
	return context.WithValue(ctx, ctxKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent{}).(string)
	return v
}

// WithTime pins "now" for everything downstream (tests, batch workers).
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyTime{}, t)
}

// Now returns the request-scoped time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
