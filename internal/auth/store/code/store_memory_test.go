package code

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/auth/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

func newCode(userID id.UserID, purpose models.Purpose, hash string, expires time.Time) *models.OneTimeCode {
	return &models.OneTimeCode{
		ID:        id.NewCodeID(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: expires,
		CreatedAt: expires.Add(-time.Minute),
	}
}

func TestInMemoryUpsertReplacesPerPurpose(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := id.NewUserID()
	exp := time.Date(2026, 4, 1, 9, 15, 0, 0, time.UTC)

	first := newCode(userID, models.PurposeLogin, "h1", exp)
	require.NoError(t, s.Upsert(ctx, first))
	require.NoError(t, s.Upsert(ctx, newCode(userID, models.PurposeEmailVerification, "hv", exp)))
	second := newCode(userID, models.PurposeLogin, "h2", exp)
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.Find(ctx, userID, models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CodeHash)

	assert.ErrorIs(t, s.Consume(ctx, first.ID), sentinel.ErrAlreadyUsed, "replaced code cannot be consumed")

	verify, err := s.Find(ctx, userID, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, "hv", verify.CodeHash)
}

func TestInMemoryConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newCode(id.NewUserID(), models.PurposeLogin, "h", time.Now().Add(time.Minute))
	require.NoError(t, s.Upsert(ctx, c))

	require.NoError(t, s.Consume(ctx, c.ID))
	assert.ErrorIs(t, s.Consume(ctx, c.ID), ErrConsumed)

	_, err := s.Find(ctx, c.UserID, models.PurposeLogin)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryDeleteExpiredAndByUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	alice, bob := id.NewUserID(), id.NewUserID()

	require.NoError(t, s.Upsert(ctx, newCode(alice, models.PurposeLogin, "a", now)))
	require.NoError(t, s.Upsert(ctx, newCode(alice, models.PurposeEmailVerification, "b", now.Add(time.Minute))))
	require.NoError(t, s.Upsert(ctx, newCode(bob, models.PurposeLogin, "c", now.Add(-time.Second))))

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "expiry at exactly now counts as expired")

	n, err = s.DeleteByUser(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
