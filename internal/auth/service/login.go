package service

import (
	"context"
	"errors"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/models"
	dErrors "warden/pkg/domain-errors"
)

const msgLoginCodeSent = "login code sent to your email"

// Login issues a login code to a verified, active user.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (_ *models.LoginResult, err error) {
	const op = "login"
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if err := prepare(req); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	u, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := u.CanRequestLogin(); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}

	code, err := s.codes.Issue(ctx, u.ID, models.PurposeLogin)
	if err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.notifier.SendLoginCode(ctx, u.Email, code, s.codes.TTL(models.PurposeLogin))
	s.incrementCodesIssued(models.PurposeLogin)
	s.logAudit(ctx, audit.ActionLoginCodeIssued, u.ID.String(), nil)

	res := &models.LoginResult{Message: msgLoginCodeSent}
	if s.cfg.ExposeCodes {
		res.Code = code
	}
	return res, nil
}

// VerifyLogin consumes the login code and issues an access token.
func (s *Service) VerifyLogin(ctx context.Context, req *models.VerifyLoginRequest) (_ *models.SessionResult, err error) {
	const op = "verify_login"
	ctx, span := s.tracer.Start(ctx, "auth.VerifyLogin")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if err := prepare(req); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	u, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.codes.Consume(ctx, u.ID, models.PurposeLogin, req.Code); err != nil {
		s.recordVerification(models.PurposeLogin, err)
		if errors.Is(err, codes.ErrInvalidCode) {
			err = dErrors.Wrap(err, dErrors.CodeInvalidCredential, "invalid or expired login code")
		}
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.recordVerification(models.PurposeLogin, nil)

	accounts, err := s.users.ListAccountsByUser(ctx, u.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	res, err := s.session(ctx, u, accounts)
	if err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.incrementSessionsIssued("code")
	s.logAudit(ctx, audit.ActionLoginSucceeded, u.ID.String(), map[string]string{"method": "code"})
	return res, nil
}
