package service

import (
	"warden/internal/audit"
	"warden/internal/auth/models"
	dErrors "warden/pkg/domain-errors"
)

func (s *ServiceSuite) TestLoginGuards() {
	s.register("unverified", "u@x.com")
	s.registerVerified("pending", "p@x.com")

	_, err := s.service.Login(s.ctx, &models.LoginRequest{Identifier: "ghost"})
	s.assertDomainError(err, dErrors.CodeNotFound, "user not found")

	_, err = s.service.Login(s.ctx, &models.LoginRequest{Identifier: "unverified"})
	s.assertDomainError(err, dErrors.CodeForbidden, "verify your email address before logging in")

	_, err = s.service.Login(s.ctx, &models.LoginRequest{Identifier: "p@x.com"})
	s.assertDomainError(err, dErrors.CodeForbidden, "your account is pending admin activation")
}

func (s *ServiceSuite) TestLoginAndVerify() {
	userID := s.registerActive("bob", "bob@x.com")

	res, err := s.service.Login(s.ctx, &models.LoginRequest{Identifier: "bob"})
	s.Require().NoError(err)
	s.Equal("login code sent to your email", res.Message)
	s.Equal(res.Code, s.codeFor("bob@x.com"))

	session, err := s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "bob@x.com", Code: res.Code})
	s.Require().NoError(err)
	s.NotEmpty(session.AccessToken)
	s.Equal(userID, session.User.ID)
	s.True(session.User.Active)
	s.True(session.User.EmailVerified)
	s.Empty(session.User.OAuthAccounts)
	s.Nil(session.User.Image)

	claims, err := s.jwt.ValidateToken(session.AccessToken)
	s.Require().NoError(err)
	s.Equal(userID, claims.UserID)
	s.False(claims.IsAdmin)
	s.Contains(s.sink.Actions(), audit.ActionLoginSucceeded)

	_, err = s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "bob", Code: res.Code})
	s.assertDomainError(err, dErrors.CodeInvalidCredential, "invalid or expired login code")
}

func (s *ServiceSuite) TestLoginReissueInvalidatesPreviousCode() {
	s.registerActive("bob", "bob@x.com")

	first, err := s.service.Login(s.ctx, &models.LoginRequest{Identifier: "bob"})
	s.Require().NoError(err)
	var second *models.LoginResult
	for {
		second, err = s.service.Login(s.ctx, &models.LoginRequest{Identifier: "bob"})
		s.Require().NoError(err)
		if second.Code != first.Code {
			break
		}
	}

	_, err = s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "bob", Code: first.Code})
	s.assertDomainError(err, dErrors.CodeInvalidCredential, "invalid or expired login code")

	_, err = s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "bob", Code: second.Code})
	s.NoError(err)
}

func (s *ServiceSuite) TestVerifyLoginUnknownUser() {
	_, err := s.service.VerifyLogin(s.ctx, &models.VerifyLoginRequest{Identifier: "ghost", Code: "ABCDE"})
	s.assertDomainError(err, dErrors.CodeNotFound, "user not found")
}
