// Package httputil renders JSON responses and maps domain errors onto HTTP.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "warden/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope used by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type errorMapping struct {
	status int
	code   string
}

var errorMappings = map[dErrors.Code]errorMapping{
	dErrors.CodeBadRequest:        {http.StatusBadRequest, "bad_request"},
	dErrors.CodeInvalidInput:      {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:        {http.StatusBadRequest, "validation_error"},
	dErrors.CodeInvalidCredential: {http.StatusBadRequest, "invalid_credential"},
	dErrors.CodeUnauthorized:      {http.StatusUnauthorized, "unauthorized"},
	dErrors.CodeForbidden:         {http.StatusForbidden, "forbidden"},
	dErrors.CodeNotFound:          {http.StatusNotFound, "not_found"},
	dErrors.CodeConflict:          {http.StatusConflict, "conflict"},
}

var internalMapping = errorMapping{http.StatusInternalServerError, "internal_error"}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError renders err. Anything that is not a domain error, and every
// internal error, goes out as a bare 500 without its message.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, internalMapping.status, ErrorResponse{Error: internalMapping.code})
		return
	}
	m, known := errorMappings[de.Code]
	if !known {
		m = internalMapping
	}

	resp := ErrorResponse{Error: m.code}
	if known {
		resp.ErrorDescription = de.Message
	}
	if de.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, m.status, resp)
}

// StatusFor returns the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	if de, ok := dErrors.As(err); ok {
		if m, known := errorMappings[de.Code]; known {
			return m.status
		}
	}
	return internalMapping.status
}
