package service

import (
	"context"
	"errors"

	userstore "warden/internal/auth/store/user"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// errorMapping translates a store error into a user-facing domain error.
type errorMapping struct {
	sentinel error
	code     dErrors.Code
	msg      string
}

// errorMappings is checked in order; specific errors come before the
// sentinels they wrap.
var errorMappings = []errorMapping{
	{userstore.ErrUsernameTaken, dErrors.CodeConflict, "username already taken"},
	{userstore.ErrEmailTaken, dErrors.CodeConflict, "email already registered"},
	{sentinel.ErrDuplicate, dErrors.CodeConflict, "resource already exists"},
	{sentinel.ErrNotFound, dErrors.CodeNotFound, "user not found"},
}

// translate returns err as a domain error. Domain errors pass through.
func translate(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return dErrors.Wrap(err, m.code, m.msg)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
}

// fail translates err and records the failure for op.
func (s *Service) fail(ctx context.Context, op string, err error, attributes ...any) error {
	out := translate(err)
	code := dErrors.CodeInternal
	var de *dErrors.Error
	if errors.As(out, &de) {
		code = de.Code
	}
	s.authFailure(ctx, op, code, err, attributes...)
	return out
}

type preparable interface {
	Normalize()
	Validate() error
}

func prepare(req preparable) error {
	req.Normalize()
	return req.Validate()
}
