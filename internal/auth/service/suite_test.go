package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/models"
	"warden/internal/auth/resolver"
	"warden/internal/auth/service/mocks"
	codestore "warden/internal/auth/store/code"
	userstore "warden/internal/auth/store/user"
	jwttoken "warden/internal/jwt_token"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/secrets"
)

// ServiceSuite wires the service to in-memory stores and the real code
// issuer, resolver and token signer. Only email delivery is mocked; it
// records codes into a mailbox keyed by recipient.
type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	users    *userstore.InMemoryUserStore
	issuer   *codes.Issuer
	notifier *mocks.MockNotifier
	sink     *audit.MemorySink
	jwt      *jwttoken.JWTService
	service  *Service

	mu        sync.Mutex
	now       time.Time
	mailbox   map[string]string
	activated []string
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.users = userstore.New()
	s.now = time.Now()
	s.mailbox = map[string]string{}
	s.activated = nil

	s.issuer = codes.New(codestore.New(), secrets.NewHasher(bcrypt.MinCost), codes.WithClock(s.clock))
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.notifier.EXPECT().SendEmailVerification(gomock.Any(), gomock.Any(), gomock.Any(), 15*time.Minute).
		Do(func(_ context.Context, to, code string, _ time.Duration) { s.deliver(to, code) }).AnyTimes()
	s.notifier.EXPECT().SendLoginCode(gomock.Any(), gomock.Any(), gomock.Any(), 5*time.Minute).
		Do(func(_ context.Context, to, code string, _ time.Duration) { s.deliver(to, code) }).AnyTimes()
	s.notifier.EXPECT().SendPendingActivation(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	s.notifier.EXPECT().SendActivated(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, to string) { s.activated = append(s.activated, to) }).AnyTimes()

	s.sink = audit.NewMemorySink()
	s.jwt = jwttoken.NewJWTService("test-signing-key", "warden-test", time.Hour)
	s.service = s.newService(Config{ExposeCodes: true}, resolver.New(s.users))
}

func (s *ServiceSuite) newService(cfg Config, identities IdentityResolver) *Service {
	return New(s.users, s.issuer, identities, s.jwt, s.notifier, cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.sink)),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ServiceSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *ServiceSuite) deliver(to, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailbox[to] = code
}

func (s *ServiceSuite) codeFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mailbox[email]
}

func (s *ServiceSuite) register(username, email string) string {
	res, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: username, Email: email})
	s.Require().NoError(err)
	return res.UserID
}

func (s *ServiceSuite) registerVerified(username, email string) string {
	userID := s.register(username, email)
	_, err := s.service.VerifyEmail(s.ctx, &models.VerifyEmailRequest{Email: email, Code: s.codeFor(email)})
	s.Require().NoError(err)
	return userID
}

func (s *ServiceSuite) registerActive(username, email string) string {
	userID := s.registerVerified(username, email)
	_, err := s.service.Activate(s.ctx, &models.UserIDRequest{UserID: userID})
	s.Require().NoError(err)
	return userID
}

func (s *ServiceSuite) assertDomainError(err error, code dErrors.Code, msg string) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
	if msg != "" {
		s.Equal(msg, err.Error())
	}
}

// wrongCode returns a well-formed code different from code.
func wrongCode(code string) string {
	if code == "ZZZZZ" {
		return "YYYYY"
	}
	return "ZZZZZ"
}
