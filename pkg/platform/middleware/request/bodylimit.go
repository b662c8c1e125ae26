package request

import (
	"net/http"

	"warden/pkg/platform/httputil"
)

// BodyLimit rejects requests that declare a body larger than maxBytes with
// 413 and caps the rest, so a chunked body that overruns fails on read.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
					Error:            "request_too_large",
					ErrorDescription: "request body exceeds the size limit",
				})
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
