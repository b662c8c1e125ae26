// Package code stores one-time codes. A user holds at most one live code
// per purpose: issuing upserts over the previous one.
package code

import (
	"fmt"

	"warden/pkg/platform/sentinel"
)

// ErrConsumed is returned by Consume when the code was already removed,
// whether by an earlier consume, a reissue, or the reaper.
var ErrConsumed = fmt.Errorf("one-time code already consumed: %w", sentinel.ErrAlreadyUsed)

func errCodeNotFound() error {
	return fmt.Errorf("one-time code not found: %w", sentinel.ErrNotFound)
}
