package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"warden/internal/audit"
	"warden/internal/auth/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/middleware/auth"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// Activate is the admin gate that lets a verified user log in.
func (s *Service) Activate(ctx context.Context, req *models.UserIDRequest) (_ *models.StatusChangeResult, err error) {
	const op = "activate"
	ctx, span := s.tracer.Start(ctx, "auth.Activate")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	u, err := s.loadTarget(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := u.Activate(requestcontext.Now(ctx)); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.notifier.SendActivated(ctx, u.Email)
	s.incrementStatusChange("activate")
	s.logAudit(ctx, audit.ActionUserActivated, u.ID.String(), nil)

	return &models.StatusChangeResult{Message: "user activated", User: models.NewUserSummary(u)}, nil
}

// Deactivate revokes access. Outstanding tokens stop working on their next
// use because authentication re-reads the account.
func (s *Service) Deactivate(ctx context.Context, req *models.UserIDRequest) (_ *models.StatusChangeResult, err error) {
	const op = "deactivate"
	ctx, span := s.tracer.Start(ctx, "auth.Deactivate")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	u, err := s.loadTarget(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := u.Deactivate(requestcontext.Now(ctx)); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, s.fail(ctx, op, err, "user_id", u.ID.String())
	}
	s.incrementStatusChange("deactivate")
	s.logAudit(ctx, audit.ActionUserDeactivated, u.ID.String(), nil)

	return &models.StatusChangeResult{Message: "user deactivated", User: models.NewUserSummary(u)}, nil
}

func (s *Service) loadTarget(ctx context.Context, req *models.UserIDRequest) (*models.User, error) {
	if err := prepare(req); err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id must be a valid id")
	}
	return s.users.FindByID(ctx, userID)
}

// ListUsers pages through users newest first. Page and limit fall back to
// 1 and models.DefaultPageLimit; limit is capped at models.MaxPageLimit.
func (s *Service) ListUsers(ctx context.Context, f models.UserFilter) (_ *models.UserPage, err error) {
	const op = "list_users"
	ctx, span := s.tracer.Start(ctx, "auth.ListUsers")
	defer func() { span.End(err) }()
	defer s.observe(op)()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = models.DefaultPageLimit
	}
	f.Limit = min(f.Limit, models.MaxPageLimit)
	if f.Provider != "" && f.Provider != id.ProviderFilterPasswordless {
		if !id.Provider(f.Provider).IsValid() {
			return nil, s.fail(ctx, op, dErrors.New(dErrors.CodeValidation,
				"provider must be one of google, github, discord, gitlab, passwordless"))
		}
	}

	rows, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	page := &models.UserPage{
		Users:      make([]models.UserProfile, 0, len(rows)),
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}
	for _, row := range rows {
		page.Users = append(page.Users, models.NewUserProfile(row.User, row.Accounts))
	}
	return page, nil
}

// RegistrationHealth is an operator check of the registration surface.
func (s *Service) RegistrationHealth(context.Context) *models.RegistrationHealth {
	return &models.RegistrationHealth{Healthy: true}
}

// LookupAccount satisfies auth.AccountLookup for the authentication middleware.
func (s *Service) LookupAccount(ctx context.Context, userID id.UserID) (*auth.Account, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return &auth.Account{Active: u.Active, IsAdmin: u.IsAdmin}, nil
}
