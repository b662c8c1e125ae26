// Package domainerrors carries failure categories across layers without tying
// them to a transport. Stores and services return these; only the HTTP edge
// turns them into status codes.
package domainerrors

import "errors"

type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	// CodeInvalidCredential covers a wrong, expired or already used one-time
	// code. Callers never learn which.
	CodeInvalidCredential Code = "invalid_credential"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeInternal          Code = "internal_error"
)

type Error struct {
	Code    Code
	Message string
	Err     error
	// Retryable is set when the failure came from a lost race and repeating
	// the same request is safe.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code alone, so errors.Is(err, &Error{Code: CodeNotFound})
// works through any wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	return false
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func NewRetryable(code Code, msg string, cause error) error {
	return &Error{Code: code, Message: msg, Err: cause, Retryable: true}
}

// Wrap attaches msg to err. A domain error already in the chain keeps its
// code and retry flag; code only applies to foreign errors.
func Wrap(err error, code Code, msg string) error {
	wrapped := &Error{Code: code, Message: msg, Err: err}
	if inner, ok := As(err); ok {
		wrapped.Code = inner.Code
		wrapped.Retryable = inner.Retryable
	}
	return wrapped
}

// As returns the outermost domain error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
