// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where OAuthAccountID is expected.
type (
	UserID         uuid.UUID
	OAuthAccountID uuid.UUID
	CodeID         uuid.UUID
)

// Constructors for freshly created records.

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewOAuthAccountID() OAuthAccountID { return OAuthAccountID(uuid.New()) }
func NewCodeID() CodeID                 { return CodeID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, token claims).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseOAuthAccountID(s string) (OAuthAccountID, error) {
	id, err := parseUUID(s, "oauth account ID")
	return OAuthAccountID(id), err
}

// String methods - for logging and debugging.

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id OAuthAccountID) String() string { return uuid.UUID(id).String() }
func (id CodeID) String() string         { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id OAuthAccountID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CodeID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON responses.
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText parses a UUID string, so request bodies can carry typed IDs.
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
