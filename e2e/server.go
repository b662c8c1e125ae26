package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/email"
	authhandler "warden/internal/auth/handler"
	"warden/internal/auth/resolver"
	"warden/internal/auth/service"
	codestore "warden/internal/auth/store/code"
	userstore "warden/internal/auth/store/user"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/health"
	rlmiddleware "warden/internal/ratelimit/middleware"
	"warden/internal/ratelimit/store/bucket"
	"warden/internal/seeder"
	httptransport "warden/internal/transport/http"
	"warden/pkg/secrets"
)

// startInProcess boots the HTTP stack on in-memory stores with codes echoed
// in responses, so scenarios can run without a deployed server.
func startInProcess(adminEmail string) (*httptest.Server, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := userstore.New()
	issuer := codes.New(codestore.New(), secrets.NewHasher(bcrypt.MinCost))
	tokens := jwttoken.NewJWTService("e2e-signing-key", "warden-e2e", time.Hour)

	svc := service.New(users, issuer, resolver.New(users), tokens,
		email.NewNotifier(email.NewLogSender(logger), "Warden", logger),
		service.Config{ExposeCodes: true},
		service.WithLogger(logger),
		service.WithAuditPublisher(audit.NewPublisher(audit.NewLogSink(logger))),
	)

	if _, err := seeder.New(users, logger).EnsureAdmin(context.Background(), adminEmail, "admin"); err != nil {
		return nil, err
	}

	limiter := rlmiddleware.New(bucket.NewInMemoryBucketStore(), logger)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   logger,
		Auth:     authhandler.New(svc, logger, authhandler.WithThrottle(limiter.RateLimit)),
		Tokens:   jwttoken.NewJWTServiceAdapter(tokens),
		Accounts: svc,
		Health:   health.New("e2e"),
		Registry: prometheus.NewRegistry(),
	})
	return httptest.NewServer(router), nil
}
