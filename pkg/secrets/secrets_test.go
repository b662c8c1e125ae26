package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "warden/pkg/domain-errors"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("ab12c")
	require.NoError(t, err)
	assert.NotEqual(t, "AB12C", hash)

	t.Run("matches regardless of case", func(t *testing.T) {
		assert.True(t, h.Matches("AB12C", hash))
		assert.True(t, h.Matches(" ab12c ", hash))
	})

	t.Run("rejects other codes", func(t *testing.T) {
		assert.False(t, h.Matches("AB12D", hash))
		assert.False(t, h.Matches("AB12C", "not-a-hash"))
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := h.Hash("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}
