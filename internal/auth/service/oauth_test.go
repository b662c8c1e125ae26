package service

import (
	"errors"

	"go.uber.org/mock/gomock"

	"warden/internal/audit"
	"warden/internal/auth/models"
	"warden/internal/auth/service/mocks"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func (s *ServiceSuite) TestOAuthVerifyCreatesAndReuses() {
	req := &models.OAuthVerifyRequest{Provider: "GitHub", ProviderID: "42", Email: "alice@x.com", Name: "Alice"}

	first, err := s.service.OAuthVerify(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("alice", first.User.Username)
	s.True(first.User.Active)
	s.Require().Len(first.User.OAuthAccounts, 1)
	s.Equal(models.LinkedAccount{Provider: "github", ProviderID: "42"}, first.User.OAuthAccounts[0])

	again, err := s.service.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "github", ProviderID: "42"})
	s.Require().NoError(err)
	s.Equal(first.User.ID, again.User.ID)
	s.Len(again.User.OAuthAccounts, 1)

	_, total, err := s.users.List(s.ctx, models.UserFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)

	var outcomes []string
	for _, e := range s.sink.Events() {
		if e.Action == audit.ActionOAuthResolved {
			outcomes = append(outcomes, e.Attrs["outcome"])
		}
	}
	s.Equal([]string{"created", "existing"}, outcomes)
}

func (s *ServiceSuite) TestOAuthVerifyLinksByEmail() {
	userID := s.register("erin", "erin@x.com")

	res, err := s.service.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{
		Provider: "google", ProviderID: "g-1", Email: "erin@x.com", Image: "https://img.example/e.png",
	})
	s.Require().NoError(err)
	s.Equal(userID, res.User.ID)
	s.True(res.User.Active)
	s.True(res.User.EmailVerified)
	s.Require().NotNil(res.User.Image)
	s.Equal("https://img.example/e.png", *res.User.Image)

	_, total, err := s.users.List(s.ctx, models.UserFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
}

func (s *ServiceSuite) TestOAuthVerifySuffixesTakenUsernames() {
	s.register("alice", "a0@x.com")
	s.register("alice1", "a1@x.com")

	res, err := s.service.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "discord", ProviderID: "d-1", Name: "Alice"})
	s.Require().NoError(err)
	s.Equal("alice2", res.User.Username)
	s.Equal("d-1@discord.oauth", res.User.Email)
}

func (s *ServiceSuite) TestOAuthVerifyRejectsUnknownProvider() {
	_, err := s.service.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "myspace", ProviderID: "1"})
	s.assertDomainError(err, dErrors.CodeValidation, "")
}

func (s *ServiceSuite) TestOAuthVerifyPassesRetryableConflict() {
	identities := mocks.NewMockIdentityResolver(s.ctrl)
	raced := dErrors.NewRetryable(dErrors.CodeConflict, "oauth identity changed concurrently, retry the request", errors.New("dup"))
	identities.EXPECT().
		Resolve(gomock.Any(), models.OAuthAssertion{Provider: id.ProviderGitLab, ProviderID: "7"}).
		Return(nil, raced)

	svc := s.newService(Config{}, identities)
	_, err := svc.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "gitlab", ProviderID: "7"})
	s.assertDomainError(err, dErrors.CodeConflict, "")
	s.True(dErrors.IsRetryable(err))
}

func (s *ServiceSuite) TestOAuthVerifyTokenFailureIsInternal() {
	tokens := mocks.NewMockTokenIssuer(s.ctrl)
	tokens.EXPECT().IssueAccessToken(gomock.Any(), gomock.Any(), false).Return("", errors.New("signer unavailable"))

	svc := New(s.users, s.issuer, s.service.resolver, tokens, s.notifier, Config{})
	_, err := svc.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "github", ProviderID: "9"})
	s.assertDomainError(err, dErrors.CodeInternal, "internal error")
}
