package admin

import (
	"log/slog"
	"net/http"

	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// RequireAdmin must run after auth.RequireAuth; it trusts the live admin
// flag that middleware stored in the request context.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.IsAdmin(ctx) {
				logger.WarnContext(ctx, "admin access denied",
					"user_id", requestcontext.UserID(ctx).String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Error:            "forbidden",
					ErrorDescription: "admin access required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
