// Package service implements the account lifecycle: registration, email
// verification, passwordless login, OAuth sign-in and admin activation.
package service

//go:generate mockgen -destination=mocks/mocks.go -package=mocks warden/internal/auth/service TokenIssuer,Notifier,AuditPublisher,IdentityResolver

import (
	"context"
	"log/slog"
	"time"

	"warden/internal/audit"
	"warden/internal/auth/metrics"
	"warden/internal/auth/models"
	"warden/internal/auth/resolver"
	"warden/internal/platform/tracer"
	id "warden/pkg/domain"
)

// UserStore is the account store as the lifecycle sees it. Find methods
// return an error wrapping sentinel.ErrNotFound for unknown users; Create
// and Update report uniqueness violations with errors wrapping
// sentinel.ErrDuplicate.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, userID id.UserID) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	ListAccountsByUser(ctx context.Context, userID id.UserID) ([]*models.OAuthAccount, error)
	List(ctx context.Context, f models.UserFilter) ([]models.UserWithAccounts, int, error)
}

type CodeIssuer interface {
	Issue(ctx context.Context, userID id.UserID, purpose models.Purpose) (string, error)
	Consume(ctx context.Context, userID id.UserID, purpose models.Purpose, submitted string) error
	TTL(purpose models.Purpose) time.Duration
}

type IdentityResolver interface {
	Resolve(ctx context.Context, a models.OAuthAssertion) (*resolver.Result, error)
}

type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, userID id.UserID, isAdmin bool) (string, error)
}

// Notifier sends lifecycle emails. Implementations swallow delivery errors.
type Notifier interface {
	SendEmailVerification(ctx context.Context, to, code string, ttl time.Duration)
	SendLoginCode(ctx context.Context, to, code string, ttl time.Duration)
	SendPendingActivation(ctx context.Context, to, username string)
	SendActivated(ctx context.Context, to string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, e audit.Event)
}

type Config struct {
	// ExposeCodes echoes freshly issued codes in responses. Development only.
	ExposeCodes bool
}

type Service struct {
	users    UserStore
	codes    CodeIssuer
	resolver IdentityResolver
	tokens   TokenIssuer
	notifier Notifier
	cfg      Config

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(
	users UserStore,
	codes CodeIssuer,
	identities IdentityResolver,
	tokens TokenIssuer,
	notifier Notifier,
	cfg Config,
	opts ...Option,
) *Service {
	svc := &Service{
		users:    users,
		codes:    codes,
		resolver: identities,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.Noop{}
	}
	return svc
}

// session issues a token for u and renders the profile returned by
// verify-login and oauth.
func (s *Service) session(ctx context.Context, u *models.User, accounts []*models.OAuthAccount) (*models.SessionResult, error) {
	token, err := s.tokens.IssueAccessToken(ctx, u.ID, u.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &models.SessionResult{
		AccessToken: token,
		User:        models.NewUserProfile(u, accounts),
	}, nil
}
