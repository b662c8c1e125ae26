package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"warden/internal/audit"
	"warden/internal/auth/models"
	"warden/internal/auth/service/mocks"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

func (s *ServiceSuite) TestActivate() {
	unverified := s.register("u", "u@x.com")
	pending := s.registerVerified("p", "p@x.com")

	_, err := s.service.Activate(s.ctx, &models.UserIDRequest{UserID: id.NewUserID().String()})
	s.assertDomainError(err, dErrors.CodeNotFound, "user not found")

	_, err = s.service.Activate(s.ctx, &models.UserIDRequest{UserID: "not-a-uuid"})
	s.assertDomainError(err, dErrors.CodeValidation, "")

	_, err = s.service.Activate(s.ctx, &models.UserIDRequest{UserID: unverified})
	s.assertDomainError(err, dErrors.CodeBadRequest, "user must verify email before activation")

	res, err := s.service.Activate(s.ctx, &models.UserIDRequest{UserID: pending})
	s.Require().NoError(err)
	s.Equal("user activated", res.Message)
	s.Equal(models.UserSummary{ID: pending, Username: "p", Email: "p@x.com", Active: true}, res.User)
	s.Equal([]string{"p@x.com"}, s.activated)

	_, err = s.service.Activate(s.ctx, &models.UserIDRequest{UserID: pending})
	s.assertDomainError(err, dErrors.CodeConflict, "user is already active")
}

func (s *ServiceSuite) TestDeactivate() {
	active := s.registerActive("bob", "bob@x.com")
	admin := id.NewUserID()
	ctx := requestcontext.WithUserID(s.ctx, admin)

	res, err := s.service.Deactivate(ctx, &models.UserIDRequest{UserID: active})
	s.Require().NoError(err)
	s.Equal("user deactivated", res.Message)
	s.False(res.User.Active)

	_, err = s.service.Deactivate(ctx, &models.UserIDRequest{UserID: active})
	s.assertDomainError(err, dErrors.CodeConflict, "user is already inactive")

	var found bool
	for _, e := range s.sink.Events() {
		if e.Action == audit.ActionUserDeactivated {
			found = true
			s.Equal(admin.String(), e.ActorID)
			s.Equal(active, e.UserID)
		}
	}
	s.True(found)

	s.Run("reactivation is allowed", func() {
		_, err := s.service.Activate(ctx, &models.UserIDRequest{UserID: active})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestLookupAccountReflectsLiveState() {
	userID := s.registerActive("bob", "bob@x.com")
	parsed, err := id.ParseUserID(userID)
	s.Require().NoError(err)

	acct, err := s.service.LookupAccount(s.ctx, parsed)
	s.Require().NoError(err)
	s.True(acct.Active)

	_, err = s.service.Deactivate(s.ctx, &models.UserIDRequest{UserID: userID})
	s.Require().NoError(err)
	acct, err = s.service.LookupAccount(s.ctx, parsed)
	s.Require().NoError(err)
	s.False(acct.Active)

	_, err = s.service.LookupAccount(s.ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestListUsers() {
	s.register("one", "one@x.com")
	s.registerActive("two", "two@x.com")
	_, err := s.service.OAuthVerify(s.ctx, &models.OAuthVerifyRequest{Provider: "github", ProviderID: "1", Name: "three"})
	s.Require().NoError(err)

	s.Run("defaults", func() {
		page, err := s.service.ListUsers(s.ctx, models.UserFilter{})
		s.Require().NoError(err)
		s.Equal(1, page.Page)
		s.Equal(models.DefaultPageLimit, page.Limit)
		s.Equal(3, page.Total)
		s.Equal(1, page.TotalPages)
		s.Equal("three", page.Users[0].Username)
	})

	s.Run("passwordless", func() {
		page, err := s.service.ListUsers(s.ctx, models.UserFilter{Provider: id.ProviderFilterPasswordless})
		s.Require().NoError(err)
		s.Equal(2, page.Total)
	})

	s.Run("provider and active", func() {
		active := true
		page, err := s.service.ListUsers(s.ctx, models.UserFilter{Provider: "github", Active: &active})
		s.Require().NoError(err)
		s.Equal(1, page.Total)
		s.Equal("github", page.Users[0].OAuthAccounts[0].Provider)
	})

	s.Run("paging", func() {
		page, err := s.service.ListUsers(s.ctx, models.UserFilter{Page: 2, Limit: 2})
		s.Require().NoError(err)
		s.Len(page.Users, 1)
		s.Equal(2, page.TotalPages)
	})

	s.Run("limit capped", func() {
		page, err := s.service.ListUsers(s.ctx, models.UserFilter{Limit: 1000})
		s.Require().NoError(err)
		s.Equal(models.MaxPageLimit, page.Limit)
	})

	s.Run("unknown provider", func() {
		_, err := s.service.ListUsers(s.ctx, models.UserFilter{Provider: "myspace"})
		s.assertDomainError(err, dErrors.CodeValidation, "")
	})
}

func (s *ServiceSuite) TestAuditEventsCarryRequestMetadata() {
	publisher := mocks.NewMockAuditPublisher(s.ctrl)
	var got []audit.Event
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Event) { got = append(got, e) }).AnyTimes()

	svc := New(s.users, s.issuer, s.service.resolver, s.jwt, s.notifier, Config{}, WithAuditPublisher(publisher))
	ctx := requestcontext.WithRequestID(s.ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.77",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")

	_, err := svc.Register(ctx, &models.RegisterRequest{Username: "meta", Email: "meta@x.com"})
	s.Require().NoError(err)

	s.Require().Len(got, 1)
	s.Equal(audit.ActionUserRegistered, got[0].Action)
	s.Equal("req-1", got[0].RequestID)
	s.NotEqual("203.0.113.77", got[0].ClientIP)
	s.Contains(got[0].Device, "Firefox")
}

func (s *ServiceSuite) TestRegistrationHealth() {
	s.True(s.service.RegistrationHealth(s.ctx).Healthy)
}
