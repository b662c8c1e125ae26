package service

import (
	"context"
	"errors"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/models"
	"warden/internal/platform/tracer"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

const (
	msgRegistered    = "registration successful, verify your email address"
	msgEmailVerified = "email verified successfully, your account is pending admin activation"
)

// Register creates an unverified account and sends its verification code.
// Uniqueness is decided by the store on insert, not by a prior lookup.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (_ *models.RegisterResult, err error) {
	const op = "register"
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if err := prepare(req); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	u := models.NewRegisteredUser(req.Username, req.Email, requestcontext.Now(ctx))
	if err := s.users.Create(ctx, u); err != nil {
		return nil, s.fail(ctx, op, err, "email", req.Email)
	}
	span.SetAttributes(tracer.String("user_id", u.ID.String()))

	code, err := s.codes.Issue(ctx, u.ID, models.PurposeEmailVerification)
	if err != nil {
		// An unverified user without a code would hold the username until the reaper runs.
		if delErr := s.users.Delete(context.WithoutCancel(ctx), u.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to discard user after code issue failure",
				"user_id", u.ID.String(), "error", delErr)
		}
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.notifier.SendEmailVerification(ctx, u.Email, code, s.codes.TTL(models.PurposeEmailVerification))

	s.incrementUsersCreated("registration")
	s.incrementCodesIssued(models.PurposeEmailVerification)
	s.logAudit(ctx, audit.ActionUserRegistered, u.ID.String(), nil)

	res := &models.RegisterResult{Message: msgRegistered, UserID: u.ID.String()}
	if s.cfg.ExposeCodes {
		res.Code = code
	}
	return res, nil
}

// VerifyEmail consumes the verification code and moves the user to pending activation.
func (s *Service) VerifyEmail(ctx context.Context, req *models.VerifyEmailRequest) (_ *models.VerifyEmailResult, err error) {
	const op = "verify_email"
	ctx, span := s.tracer.Start(ctx, "auth.VerifyEmail")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if err := prepare(req); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.fail(ctx, op, err, "email", req.Email)
	}
	if u.EmailVerified {
		return nil, s.fail(ctx, op, dErrors.New(dErrors.CodeConflict, "email already verified"), "user_id", u.ID.String())
	}

	if err := s.codes.Consume(ctx, u.ID, models.PurposeEmailVerification, req.Code); err != nil {
		s.recordVerification(models.PurposeEmailVerification, err)
		if errors.Is(err, codes.ErrInvalidCode) {
			err = dErrors.Wrap(err, dErrors.CodeInvalidCredential, "invalid or expired verification code")
		}
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.recordVerification(models.PurposeEmailVerification, nil)

	if err := u.VerifyEmail(requestcontext.Now(ctx)); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	if err := s.users.Update(ctx, u); err != nil {
		s.reissueVerification(ctx, u)
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.notifier.SendPendingActivation(ctx, u.Email, u.Username)
	s.logAudit(ctx, audit.ActionEmailVerified, u.ID.String(), nil)

	return &models.VerifyEmailResult{Message: msgEmailVerified, UserID: u.ID.String()}, nil
}

// reissueVerification replaces a code that was consumed by a verification
// whose user update then failed, so the user can try again.
func (s *Service) reissueVerification(ctx context.Context, u *models.User) {
	ctx = context.WithoutCancel(ctx)
	code, err := s.codes.Issue(ctx, u.ID, models.PurposeEmailVerification)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reissue verification code",
			"user_id", u.ID.String(), "error", err)
		return
	}
	s.notifier.SendEmailVerification(ctx, u.Email, code, s.codes.TTL(models.PurposeEmailVerification))
	s.incrementCodesIssued(models.PurposeEmailVerification)
}
