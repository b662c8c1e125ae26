//go:build integration

package code_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/auth/models"
	"warden/internal/auth/store/code"
	"warden/internal/auth/store/user"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *code.PostgresStore
	userID   id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = code.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.Reset(ctx))

	u := models.NewRegisteredUser("bob", "bob@example.com", time.Now())
	s.Require().NoError(user.NewPostgres(s.postgres.DB).Create(ctx, u))
	s.userID = u.ID
}

func (s *PostgresStoreSuite) newCode(purpose models.Purpose, expiresIn time.Duration) *models.OneTimeCode {
	now := time.Now()
	return &models.OneTimeCode{
		ID:        id.NewCodeID(),
		UserID:    s.userID,
		Purpose:   purpose,
		CodeHash:  "hash-" + string(purpose),
		ExpiresAt: now.Add(expiresIn),
		CreatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestUpsertReplacesPreviousCode() {
	ctx := context.Background()
	first := s.newCode(models.PurposeLogin, 5*time.Minute)
	s.Require().NoError(s.store.Upsert(ctx, first))

	second := s.newCode(models.PurposeLogin, 5*time.Minute)
	second.CodeHash = "hash-second"
	s.Require().NoError(s.store.Upsert(ctx, second))

	got, err := s.store.Find(ctx, s.userID, models.PurposeLogin)
	s.Require().NoError(err)
	s.Equal(second.ID, got.ID)
	s.Equal("hash-second", got.CodeHash)

	s.ErrorIs(s.store.Consume(ctx, first.ID), code.ErrConsumed, "stale id must not remove the fresh code")
}

func (s *PostgresStoreSuite) TestPurposesAreIndependent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Upsert(ctx, s.newCode(models.PurposeLogin, time.Minute)))
	s.Require().NoError(s.store.Upsert(ctx, s.newCode(models.PurposeEmailVerification, time.Minute)))

	n, err := s.store.DeleteByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *PostgresStoreSuite) TestConsumeIsSingleUse() {
	ctx := context.Background()
	c := s.newCode(models.PurposeLogin, time.Minute)
	s.Require().NoError(s.store.Upsert(ctx, c))

	res := testutil.Race(5, func(int) error {
		return s.store.Consume(ctx, c.ID)
	})
	s.Equal(int32(1), res.Successes)
	s.Equal(int32(4), res.Errors)

	_, err := s.store.Find(ctx, s.userID, models.PurposeLogin)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteExpired() {
	ctx := context.Background()
	s.Require().NoError(s.store.Upsert(ctx, s.newCode(models.PurposeLogin, -time.Minute)))
	s.Require().NoError(s.store.Upsert(ctx, s.newCode(models.PurposeEmailVerification, time.Hour)))

	n, err := s.store.DeleteExpired(ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.store.Find(ctx, s.userID, models.PurposeEmailVerification)
	s.NoError(err)
}
