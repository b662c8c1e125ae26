package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	id "warden/pkg/domain"
	"warden/pkg/platform/httputil"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the subset of token claims the middleware needs.
type JWTClaims struct {
	UserID  string
	IsAdmin bool
}

// Account is the live state of the token subject.
type Account struct {
	Active  bool
	IsAdmin bool
}

// AccountLookup loads the current state of a user. It returns an error
// wrapping sentinel.ErrNotFound when the user no longer exists.
type AccountLookup interface {
	LookupAccount(ctx context.Context, userID id.UserID) (*Account, error)
}

func unauthorized(w http.ResponseWriter, desc string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
		Error:            "unauthorized",
		ErrorDescription: desc,
	})
}

// RequireAuth validates the bearer token and then re-reads the subject from
// the account store. Deleted or deactivated users are rejected even while
// their token is unexpired, and the admin flag placed in context is the
// stored one, not the one captured in the token.
func RequireAuth(validator JWTValidator, accounts AccountLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "error", err, "request_id", requestID)
				unauthorized(w, "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject", "error", err, "request_id", requestID)
				unauthorized(w, "Invalid or expired token")
				return
			}

			account, err := accounts.LookupAccount(ctx, userID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					logger.WarnContext(ctx, "unauthorized access - user no longer exists", "user_id", userID.String(), "request_id", requestID)
					unauthorized(w, "Invalid or expired token")
					return
				}
				logger.ErrorContext(ctx, "failed to load token subject", "error", err, "request_id", requestID)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
					Error:            "internal_error",
					ErrorDescription: "Failed to validate token",
				})
				return
			}
			if !account.Active {
				logger.WarnContext(ctx, "unauthorized access - user inactive", "user_id", userID.String(), "request_id", requestID)
				unauthorized(w, "Account is not active")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithIsAdmin(ctx, account.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
