package secrets

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "warden/pkg/domain-errors"
)

// Hasher hashes one-time codes for storage. Codes are compared case-insensitively,
// so both sides are upper-cased before bcrypt sees them.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Values outside
// bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash creates a bcrypt hash of the normalized code.
func (h *Hasher) Hash(code string) (string, error) {
	normalized := normalize(code)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeValidation, "code cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(normalized), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "code is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash code")
	}
	return string(hashed), nil
}

// Matches reports whether code matches hash. Malformed hashes never match.
func (h *Hasher) Matches(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalize(code))) == nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
