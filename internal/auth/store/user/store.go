// Package user stores accounts and their OAuth links. Uniqueness of username,
// email and provider identity is enforced here and reported through the
// errors below, all of which wrap sentinel.ErrDuplicate.
package user

import (
	"fmt"

	"warden/pkg/platform/sentinel"
)

var (
	ErrUsernameTaken = fmt.Errorf("username taken: %w", sentinel.ErrDuplicate)
	ErrEmailTaken    = fmt.Errorf("email taken: %w", sentinel.ErrDuplicate)
	// ErrIdentityLinked means the (provider, providerId) pair already belongs to a user.
	ErrIdentityLinked = fmt.Errorf("oauth identity already linked: %w", sentinel.ErrDuplicate)
	// ErrProviderAlreadyLinked means the user already holds a link for that
	// provider under a different providerId.
	ErrProviderAlreadyLinked = fmt.Errorf("user already linked to provider: %w", sentinel.ErrDuplicate)
)

func errUserNotFound() error {
	return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func errAccountNotFound() error {
	return fmt.Errorf("oauth account not found: %w", sentinel.ErrNotFound)
}
