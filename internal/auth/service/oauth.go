package service

import (
	"context"

	"warden/internal/audit"
	"warden/internal/auth/models"
	"warden/internal/auth/resolver"
	"warden/internal/platform/tracer"
)

// OAuthVerify resolves a provider assertion to a local user and signs them in.
func (s *Service) OAuthVerify(ctx context.Context, req *models.OAuthVerifyRequest) (_ *models.SessionResult, err error) {
	const op = "oauth_verify"
	ctx, span := s.tracer.Start(ctx, "auth.OAuthVerify")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if err := prepare(req); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	span.SetAttributes(tracer.String("provider", req.Provider))

	result, err := s.resolver.Resolve(ctx, req.Assertion())
	if err != nil {
		return nil, s.fail(ctx, op, err, "provider", req.Provider)
	}
	span.SetAttributes(tracer.String("outcome", string(result.Outcome)))

	res, err := s.session(ctx, result.User, result.Accounts)
	if err != nil {
		return nil, s.fail(ctx, op, err, "user_id", result.User.ID.String())
	}

	if result.Outcome == resolver.OutcomeCreated {
		s.incrementUsersCreated("oauth")
	}
	if s.metrics != nil {
		s.metrics.OAuthResolutions.WithLabelValues(req.Provider, string(result.Outcome)).Inc()
	}
	s.incrementSessionsIssued("oauth")
	s.logAudit(ctx, audit.ActionOAuthResolved, result.User.ID.String(), map[string]string{
		"provider": req.Provider,
		"outcome":  string(result.Outcome),
	})
	return res, nil
}
