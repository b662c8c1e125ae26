package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"warden/internal/auth/models"
	userstore "warden/internal/auth/store/user"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil"
)

type ResolverSuite struct {
	suite.Suite
	ctx      context.Context
	store    *userstore.InMemoryUserStore
	now      time.Time
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = userstore.New()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.resolver = New(s.store, WithClock(func() time.Time { return s.now }))
}

func (s *ResolverSuite) TestCreatesVerifiedActiveUser() {
	res, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{
		Provider: id.ProviderGitHub, ProviderID: "42", Email: "alice@x.com", Name: "Alice",
	})
	s.Require().NoError(err)
	s.Equal(OutcomeCreated, res.Outcome)
	s.Equal("alice", res.User.Username)
	s.True(res.User.EmailVerified)
	s.True(res.User.Active)
	s.False(res.User.IsAdmin)
	s.Require().Len(res.Accounts, 1)
	s.Equal("42", res.Accounts[0].ProviderID)
}

func (s *ResolverSuite) TestUsernameCollisionsGetSuffixes() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewRegisteredUser("alice", "a0@x.com", s.now)))
	s.Require().NoError(s.store.Create(s.ctx, models.NewRegisteredUser("alice1", "a1@x.com", s.now)))

	res, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderGoogle, ProviderID: "g-1", Name: "Alice"})
	s.Require().NoError(err)
	s.Equal("alice2", res.User.Username)
	s.Equal("g-1@google.oauth", res.User.Email)
}

func (s *ResolverSuite) TestUsernameAttemptsExhausted() {
	r := New(s.store, WithClock(func() time.Time { return s.now }), WithMaxUsernameAttempts(2))
	s.Require().NoError(s.store.Create(s.ctx, models.NewRegisteredUser("bob", "b0@x.com", s.now)))
	s.Require().NoError(s.store.Create(s.ctx, models.NewRegisteredUser("bob1", "b1@x.com", s.now)))

	_, err := r.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderDiscord, ProviderID: "d", Name: "Bob"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ResolverSuite) TestExactLinkIsIdempotent() {
	a := models.OAuthAssertion{Provider: id.ProviderGitHub, ProviderID: "42", Name: "Alice"}
	first, err := s.resolver.Resolve(s.ctx, a)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	second, err := s.resolver.Resolve(s.ctx, a)
	s.Require().NoError(err)

	s.Equal(OutcomeExisting, second.Outcome)
	s.Equal(first.User.ID, second.User.ID)
	s.Len(second.Accounts, 1)
	s.Equal(s.now, second.Accounts[0].UpdatedAt, "link touched")
}

func (s *ResolverSuite) TestExactLinkDoesNotReactivate() {
	first, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderGitLab, ProviderID: "7", Name: "Carol"})
	s.Require().NoError(err)
	u := first.User
	s.Require().NoError(u.Deactivate(s.now))
	s.Require().NoError(s.store.Update(s.ctx, u))

	res, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{
		Provider: id.ProviderGitLab, ProviderID: "7", Email: "carol@new.com", Image: "https://img/c.png",
	})
	s.Require().NoError(err)
	s.False(res.User.Active)
	s.Equal("carol@new.com", res.User.Email)
	s.Equal("https://img/c.png", res.User.Image)
}

func (s *ResolverSuite) TestEmailCollisionLinksAndEscalates() {
	existing := models.NewRegisteredUser("dave", "dave@x.com", s.now)
	s.Require().NoError(s.store.Create(s.ctx, existing))

	res, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{
		Provider: id.ProviderGoogle, ProviderID: "g-9", Email: "dave@x.com", Image: "https://img/d.png",
	})
	s.Require().NoError(err)
	s.Equal(OutcomeLinked, res.Outcome)
	s.Equal(existing.ID, res.User.ID)
	s.Equal("dave", res.User.Username)
	s.True(res.User.EmailVerified)
	s.True(res.User.Active)
	s.Equal("https://img/d.png", res.User.Image)

	stored, err := s.store.FindByID(s.ctx, existing.ID)
	s.Require().NoError(err)
	s.True(stored.Active)
}

func (s *ResolverSuite) TestSecondIdentityForSameProviderIsPermanentConflict() {
	_, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{
		Provider: id.ProviderGitHub, ProviderID: "1", Email: "erin@x.com", Name: "Erin",
	})
	s.Require().NoError(err)

	_, err = s.resolver.Resolve(s.ctx, models.OAuthAssertion{
		Provider: id.ProviderGitHub, ProviderID: "2", Email: "erin@x.com",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.False(dErrors.IsRetryable(err))
	s.ErrorIs(err, userstore.ErrProviderAlreadyLinked)
	s.Contains(err.Error(), "account already linked to another github identity")

	_, err = s.store.FindAccount(s.ctx, id.ProviderGitHub, "2")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ResolverSuite) TestReapedIdentityWithoutEmailRelinksSameUser() {
	a := models.OAuthAssertion{Provider: id.ProviderGitHub, ProviderID: "7", Name: "Finn"}
	first, err := s.resolver.Resolve(s.ctx, a)
	s.Require().NoError(err)
	s.Equal("7@github.oauth", first.User.Email)

	u := first.User
	s.Require().NoError(u.Deactivate(s.now))
	s.Require().NoError(s.store.Update(s.ctx, u))
	n, err := s.store.DeleteStaleAccounts(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.now = s.now.Add(time.Hour)
	again, err := s.resolver.Resolve(s.ctx, a)
	s.Require().NoError(err)
	s.Equal(OutcomeLinked, again.Outcome)
	s.Equal(u.ID, again.User.ID)
	s.Equal("finn", again.User.Username)
	s.True(again.User.Active, "relinking follows the email-link rules")
	s.Require().Len(again.Accounts, 1)

	_, total, err := s.store.List(s.ctx, models.UserFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
}

func (s *ResolverSuite) TestPlaceholderOwnedByUnverifiedUserIsNotLinked() {
	squatter := models.NewRegisteredUser("squatter", "8@github.oauth", s.now)
	s.Require().NoError(s.store.Create(s.ctx, squatter))

	_, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderGitHub, ProviderID: "8"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.False(dErrors.IsRetryable(err))

	accounts, err := s.store.ListAccountsByUser(s.ctx, squatter.ID)
	s.Require().NoError(err)
	s.Empty(accounts)
}

func (s *ResolverSuite) TestValidation() {
	_, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{Provider: "myspace", ProviderID: "1"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.resolver.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderGitHub, ProviderID: "  "})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// racingStore reports the identity as free on lookup, then loses the insert.
type racingStore struct {
	*userstore.InMemoryUserStore
}

func (r racingStore) CreateWithAccount(context.Context, *models.User, *models.OAuthAccount) error {
	return userstore.ErrIdentityLinked
}

func (s *ResolverSuite) TestLostRaceIsRetryableConflict() {
	r := New(racingStore{s.store})
	_, err := r.Resolve(s.ctx, models.OAuthAssertion{Provider: id.ProviderGitHub, ProviderID: "42"})

	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.True(dErrors.IsRetryable(err))
	s.True(errors.Is(err, userstore.ErrIdentityLinked))
}

func (s *ResolverSuite) TestConcurrentFirstSignInsCreateOneUser() {
	res := testutil.Race(8, func(int) error {
		_, err := s.resolver.Resolve(s.ctx, models.OAuthAssertion{
			Provider: id.ProviderGitLab, ProviderID: "gl-9", Email: "dana@x.com", Name: "Dana",
		})
		return err
	})
	s.Equal(int32(8), res.Successes)

	_, total, err := s.store.List(s.ctx, models.UserFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
}

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		name, display, email, providerID, want string
	}{
		{"name folded", "Jane  Q\tDoe", "jane@x.com", "1", "jane_q_doe"},
		{"email local part", "", "jane.doe@x.com", "1", "jane_doe"},
		{"blank name falls through", "   ", "", "99", "user_99"},
		{"short name padded", "Al", "", "42", "al_42"},
		{"non-ascii replaced", "José", "", "1", "jos_"},
		{"mixed case local part", "", "John.Doe+tag@x.com", "1", "john_doe_tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BaseUsername(tt.display, tt.email, tt.providerID)
			assert.Equal(t, tt.want, got)
			req := models.RegisterRequest{Username: Candidate(got, 0), Email: "v@x.com"}
			assert.NoError(t, req.Validate(), "derived usernames satisfy registration rules")
		})
	}
}

func TestCandidateFitsLength(t *testing.T) {
	long := strings.Repeat("x", 40)
	assert.Len(t, Candidate(long, 0), MaxUsernameLength)
	c := Candidate(long, 12)
	assert.Len(t, c, MaxUsernameLength)
	assert.True(t, strings.HasSuffix(c, "12"))
	assert.Equal(t, "alice2", Candidate("alice", 2))
}
