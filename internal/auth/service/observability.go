package service

import (
	"context"
	"time"

	"warden/internal/audit"
	"warden/internal/auth/models"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/device"
	"warden/pkg/platform/privacy"
	"warden/pkg/requestcontext"
)

// Observability helpers for logging, auditing, and metrics.

func (s *Service) baseEvent(ctx context.Context, action audit.Action, userID string) audit.Event {
	e := audit.Event{
		Timestamp: requestcontext.Now(ctx).UTC(),
		Action:    action,
		UserID:    userID,
		Subject:   userID,
		RequestID: requestcontext.RequestID(ctx),
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		e.ClientIP = privacy.AnonymizeIP(ip)
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		e.Device = device.Parse(ua).Label
	}
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		e.ActorID = actor.String()
	}
	return e
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, userID string, attrs map[string]string) {
	e := s.baseEvent(ctx, action, userID)
	e.Attrs = attrs

	args := []any{"event", string(action), "log_type", "audit", "user_id", userID}
	if e.RequestID != "" {
		args = append(args, "request_id", e.RequestID)
	}
	if e.ActorID != "" {
		args = append(args, "actor_id", e.ActorID)
	}
	for k, v := range attrs {
		args = append(args, k, v)
	}
	s.logger.InfoContext(ctx, string(action), args...)

	if s.auditPublisher != nil {
		s.auditPublisher.Emit(ctx, e)
	}
}

// authFailure logs at Warn for expected rejections and at Error for
// internal faults, then emits an auth_failed event.
func (s *Service) authFailure(ctx context.Context, op string, code dErrors.Code, cause error, attributes ...any) {
	userID := ""
	for i := 0; i+1 < len(attributes); i += 2 {
		key, _ := attributes[i].(string)
		switch key {
		case "user_id":
			userID, _ = attributes[i+1].(string)
		case "email":
			if v, ok := attributes[i+1].(string); ok {
				attributes[i+1] = privacy.MaskEmail(v)
			}
		}
	}

	args := append([]any{"event", string(audit.ActionAuthFailed), "operation", op, "reason", string(code), "log_type", "standard"}, attributes...)
	if rid := requestcontext.RequestID(ctx); rid != "" {
		args = append(args, "request_id", rid)
	}
	if code == dErrors.CodeInternal {
		args = append(args, "error", cause)
		s.logger.ErrorContext(ctx, string(audit.ActionAuthFailed), args...)
	} else {
		s.logger.WarnContext(ctx, string(audit.ActionAuthFailed), args...)
	}

	if s.metrics != nil {
		s.metrics.IncrementAuthFailure(op, string(code))
	}
	if s.auditPublisher != nil {
		e := s.baseEvent(ctx, audit.ActionAuthFailed, userID)
		e.Reason = string(code)
		e.Attrs = map[string]string{"operation": op}
		s.auditPublisher.Emit(ctx, e)
	}
}

// observe returns a func that records the operation's duration.
func (s *Service) observe(op string) func() {
	if s.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() { s.metrics.ObserveDuration(op, start) }
}

func (s *Service) incrementUsersCreated(source string) {
	if s.metrics != nil {
		s.metrics.UsersCreated.WithLabelValues(source).Inc()
	}
}

func (s *Service) incrementCodesIssued(purpose models.Purpose) {
	if s.metrics != nil {
		s.metrics.CodesIssued.WithLabelValues(string(purpose)).Inc()
	}
}

func (s *Service) recordVerification(purpose models.Purpose, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	s.metrics.CodeVerifications.WithLabelValues(string(purpose), result).Inc()
}

func (s *Service) incrementSessionsIssued(method string) {
	if s.metrics != nil {
		s.metrics.SessionsIssued.WithLabelValues(method).Inc()
	}
}

func (s *Service) incrementStatusChange(action string) {
	if s.metrics != nil {
		s.metrics.StatusChanges.WithLabelValues(action).Inc()
	}
}
