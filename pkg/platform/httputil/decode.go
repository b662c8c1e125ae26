package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "warden/pkg/domain-errors"
)

// Bind decodes the JSON body of r into a new T and then runs Normalize and
// Validate when T implements them. Every returned error is a domain error
// that WriteError can render.
func Bind[T any](r *http.Request) (*T, error) {
	req := new(T)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "request body too large")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body must hold a single JSON object")
	}

	if n, ok := any(req).(interface{ Normalize() }); ok {
		n.Normalize()
	}
	v, ok := any(req).(interface{ Validate() error })
	if !ok {
		return req, nil
	}
	if err := v.Validate(); err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return req, nil
}
