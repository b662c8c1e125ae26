package service

import (
	"warden/internal/auth/models"
	dErrors "warden/pkg/domain-errors"
)

// TestLifecycle walks one account from registration to a signed-in session.
func (s *ServiceSuite) TestLifecycle() {
	reg, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "bob", Email: "bob@x.com"})
	s.Require().NoError(err)
	code := s.codeFor("bob@x.com")

	_, err = s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "bob@x.com", Code: wrongCode(code)})
	s.assertDomainError(err, dErrors.CodeInvalidCredential, "invalid or expired verification code")

	_, err = s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "bob@x.com", Code: code})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, &models.LoginRequest{Identifier: "bob"})
	s.assertDomainError(err, dErrors.CodeForbidden, "your account is pending admin activation")

	_, err = s.service.Activate(s.ctx, &models.UserIDRequest{UserID: reg.UserID})
	s.Require().NoError(err)

	login, err := s.service.Login(s.ctx, &models.LoginRequest{Identifier: "bob"})
	s.Require().NoError(err)

	session, err := s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "bob", Code: login.Code})
	s.Require().NoError(err)
	s.NotEmpty(session.AccessToken)
	s.True(session.User.Active)
	s.Equal("bob", session.User.Username)
}
