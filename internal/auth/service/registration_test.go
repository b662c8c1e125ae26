package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/models"
	"warden/internal/auth/resolver"
	userstore "warden/internal/auth/store/user"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// failingIssuer refuses to issue codes.
type failingIssuer struct {
	*codes.Issuer
}

func (failingIssuer) Issue(context.Context, id.UserID, models.Purpose) (string, error) {
	return "", errors.New("code store unavailable")
}

// flakyUsers fails the next Update when failUpdate is set.
type flakyUsers struct {
	*userstore.InMemoryUserStore
	failUpdate bool
}

func (f *flakyUsers) Update(ctx context.Context, u *models.User) error {
	if f.failUpdate {
		f.failUpdate = false
		return errors.New("connection reset")
	}
	return f.InMemoryUserStore.Update(ctx, u)
}

func (s *ServiceSuite) TestRegister() {
	s.Run("creates an unverified user and sends a code", func() {
		res, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "bob", Email: " Bob@X.com "})
		s.Require().NoError(err)
		s.Equal("registration successful, verify your email address", res.Message)
		s.Len(res.Code, 5)
		s.Equal(res.Code, s.codeFor("bob@x.com"))

		u, err := s.users.FindByEmail(s.ctx, "bob@x.com")
		s.Require().NoError(err)
		s.Equal(res.UserID, u.ID.String())
		s.False(u.EmailVerified)
		s.False(u.Active)
		s.False(u.IsAdmin)
		s.Contains(s.sink.Actions(), audit.ActionUserRegistered)
	})

	s.Run("duplicate username is a conflict", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "bob", Email: "other@x.com"})
		s.assertDomainError(err, dErrors.CodeConflict, "username already taken")
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "robert", Email: "bob@x.com"})
		s.assertDomainError(err, dErrors.CodeConflict, "email already registered")

		_, total, err := s.users.List(s.ctx, models.UserFilter{Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(1, total)
	})

	s.Run("invalid username is rejected", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "a b", Email: "ab@x.com"})
		s.assertDomainError(err, dErrors.CodeValidation, "")
	})

	s.Run("failures are audited", func() {
		s.Contains(s.sink.Actions(), audit.ActionAuthFailed)
	})
}

func (s *ServiceSuite) TestRegisterHidesCodeOutsideDevelopment() {
	svc := s.newService(Config{ExposeCodes: false}, resolver.New(s.users))
	res, err := svc.Register(s.ctx, &models.RegisterRequest{Username: "carol", Email: "carol@x.com"})
	s.Require().NoError(err)
	s.Empty(res.Code)
	s.NotEmpty(s.codeFor("carol@x.com"))
}

func (s *ServiceSuite) TestVerifyEmail() {
	s.register("bob", "bob@x.com")
	code := s.codeFor("bob@x.com")

	s.Run("unknown email", func() {
		_, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "nobody@x.com", Code: code})
		s.assertDomainError(err, dErrors.CodeNotFound, "user not found")
	})

	s.Run("wrong code", func() {
		_, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "bob@x.com", Code: wrongCode(code)})
		s.assertDomainError(err, dErrors.CodeInvalidCredential, "invalid or expired verification code")
	})

	s.Run("right code, lower case", func() {
		res, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "bob@x.com", Code: toLower(code)})
		s.Require().NoError(err)
		s.Equal("email verified successfully, your account is pending admin activation", res.Message)

		u, err := s.users.FindByEmail(s.ctx, "bob@x.com")
		s.Require().NoError(err)
		s.True(u.EmailVerified)
		s.False(u.Active)
	})

	s.Run("already verified", func() {
		_, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "bob@x.com", Code: code})
		s.assertDomainError(err, dErrors.CodeConflict, "email already verified")
	})
}

func (s *ServiceSuite) TestVerifyEmailExpiredCode() {
	s.register("dora", "dora@x.com")
	s.advance(15 * time.Minute)

	_, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "dora@x.com", Code: s.codeFor("dora@x.com")})
	s.assertDomainError(err, dErrors.CodeInvalidCredential, "invalid or expired verification code")
}

func (s *ServiceSuite) TestRegisterDiscardsUserWhenCodeIssueFails() {
	svc := New(s.users, failingIssuer{s.issuer}, resolver.New(s.users), s.jwt, s.notifier, Config{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := svc.Register(s.ctx, &models.RegisterRequest{Username: "hana", Email: "hana@x.com"})
	s.assertDomainError(err, dErrors.CodeInternal, "internal error")

	_, err = s.users.FindByEmail(s.ctx, "hana@x.com")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.register("hana", "hana@x.com")
}

func (s *ServiceSuite) TestVerifyEmailReissuesCodeWhenUpdateFails() {
	users := &flakyUsers{InMemoryUserStore: s.users}
	svc := New(users, s.issuer, resolver.New(s.users), s.jwt, s.notifier, Config{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.register("ivy", "ivy@x.com")

	users.failUpdate = true
	_, err := svc.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "ivy@x.com", Code: s.codeFor("ivy@x.com")})
	s.assertDomainError(err, dErrors.CodeInternal, "internal error")

	u, err := s.users.FindByEmail(s.ctx, "ivy@x.com")
	s.Require().NoError(err)
	s.False(u.EmailVerified)

	_, err = svc.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: "ivy@x.com", Code: s.codeFor("ivy@x.com")})
	s.Require().NoError(err, "the replacement code was mailed")
	u, err = s.users.FindByEmail(s.ctx, "ivy@x.com")
	s.Require().NoError(err)
	s.True(u.EmailVerified)
}

func toLower(code string) string {
	b := []byte(code)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
