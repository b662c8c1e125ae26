// Package sentinel holds the storage-level errors shared by every store
// implementation. Stores wrap them with detail and services translate them
// into domain errors.
package sentinel

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a violated uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyUsed reports a single-use record lost to a concurrent consumer.
	ErrAlreadyUsed = errors.New("record already consumed")
)
