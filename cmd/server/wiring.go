package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"warden/internal/audit"
	"warden/internal/auth/codes"
	"warden/internal/auth/email"
	authmetrics "warden/internal/auth/metrics"
	"warden/internal/auth/models"
	"warden/internal/auth/resolver"
	"warden/internal/auth/service"
	codestore "warden/internal/auth/store/code"
	userstore "warden/internal/auth/store/user"
	"warden/internal/auth/workers/cleanup"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	"warden/internal/platform/database"
	"warden/internal/platform/health"
	"warden/internal/platform/kafka/producer"
	"warden/internal/platform/redis"
	"warden/internal/platform/tracer"
	rlconfig "warden/internal/ratelimit/config"
	rlmiddleware "warden/internal/ratelimit/middleware"
	rlmodels "warden/internal/ratelimit/models"
	"warden/internal/ratelimit/store/bucket"
	"warden/internal/seeder"
	"warden/pkg/platform/circuit"
	"warden/pkg/secrets"
)

// accountStore is what both store backends provide to the lifecycle,
// the identity resolver and the reaper.
type accountStore interface {
	service.UserStore
	resolver.Store
	cleanup.UserStore
}

type oneTimeCodeStore interface {
	codes.Store
	cleanup.CodeStore
}

type stores struct {
	users accountStore
	codes oneTimeCodeStore
	pool  *database.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close() //nolint:errcheck // shutdown path
	}
}

// openStores selects Postgres when DATABASE_URL is set and in-memory stores
// otherwise.
func openStores(ctx context.Context, cfg config.Server, log *slog.Logger, checks *health.Handler, reg prometheus.Registerer) (*stores, error) {
	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if pool == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{users: userstore.New(), codes: codestore.New()}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := pool.Migrate(ctx); err != nil {
			pool.Close() //nolint:errcheck // init failure
			return nil, err
		}
	}
	checks.RegisterCheck("postgres", pool.Health)
	if err := pool.RegisterMetrics(reg); err != nil {
		log.Warn("postgres pool metrics not registered", "error", err)
	}
	log.Info("connected to postgres")
	return &stores{
		users: userstore.NewPostgres(pool.DB()),
		codes: codestore.NewPostgres(pool.DB()),
		pool:  pool,
	}, nil
}

// newAuditSink publishes to Kafka when brokers are configured and logs
// otherwise. The returned close func flushes the producer.
func newAuditSink(cfg config.Server, log *slog.Logger, checks *health.Handler) (audit.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return audit.NewLogSink(log), func() {}, nil
	}
	p, err := producer.New(producer.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.AuditTopic,
		ClientID: cfg.Kafka.ClientID,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	checks.RegisterCheck("kafka", p.Health, health.Optional())
	log.Info("audit events published to kafka", "topic", p.Topic())
	return audit.NewKafkaSink(p), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			log.Error("kafka producer close failed", "error", err)
		}
	}, nil
}

func newNotifier(cfg config.Server, log *slog.Logger, m *authmetrics.Metrics) *email.Notifier {
	var sender email.Sender = email.NewLogSender(log)
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(email.ResendConfig{
			APIKey: cfg.Email.ResendAPIKey,
			From:   cfg.Email.From,
			URL:    cfg.Email.ResendURL,
		}, log)
	} else {
		log.Warn("RESEND_API_KEY not set, emails are logged instead of sent")
	}
	return email.NewNotifier(sender, cfg.AppName, log,
		email.WithFailureCounter(m),
		email.WithSendTimeout(10*time.Second),
	)
}

func newAuthService(
	cfg config.Server,
	st *stores,
	tokens *jwttoken.JWTService,
	notifier *email.Notifier,
	log *slog.Logger,
	publisher *audit.Publisher,
	m *authmetrics.Metrics,
	tr tracer.Tracer,
) *service.Service {
	issuer := codes.New(st.codes, secrets.NewHasher(cfg.Codes.BcryptCost),
		codes.WithTTL(models.PurposeEmailVerification, cfg.Codes.EmailVerificationTTL),
		codes.WithTTL(models.PurposeLogin, cfg.Codes.LoginTTL),
	)
	return service.New(st.users, issuer, resolver.New(st.users), tokens, notifier,
		service.Config{ExposeCodes: cfg.IsDevelopment()},
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
		service.WithTracer(tr),
	)
}

func bootstrap(ctx context.Context, cfg config.Server, users seeder.UserStore, log *slog.Logger) error {
	s := seeder.New(users, log)
	if cfg.Bootstrap.AdminEmail != "" {
		if _, err := s.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminUsername); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	if cfg.Bootstrap.SeedDemo {
		if !cfg.IsDevelopment() {
			log.Warn("SEED_DEMO_DATA ignored outside development")
			return nil
		}
		if err := s.SeedDemo(ctx); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}

type rateLimiter struct {
	middleware *rlmiddleware.Middleware
	memory     *bucket.InMemoryBucketStore
	redis      *redis.Client
	log        *slog.Logger
}

// newRateLimiter counts in Redis when REDIS_URL is set, falling back to the
// in-process store while the Redis breaker is open.
func newRateLimiter(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	reg prometheus.Registerer,
	checks *health.Handler,
	m *authmetrics.Metrics,
) (*rateLimiter, error) {
	memory := bucket.NewInMemoryBucketStore()
	rc, err := redis.New(ctx, redis.Config{URL: cfg.Redis.URL, PoolSize: cfg.Redis.PoolSize})
	if err != nil {
		return nil, err
	}

	opts := []rlmiddleware.Option{
		rlmiddleware.WithConfig(rlconfig.DefaultConfig().
			With(rlmodels.ClassCredential, cfg.RateLimit.Credential).
			With(rlmodels.ClassVerify, cfg.RateLimit.Verify).
			With(rlmodels.ClassAdmin, cfg.RateLimit.Admin)),
		rlmiddleware.WithErrorCounter(m),
	}
	var primary rlmiddleware.Limiter = memory
	if rc != nil {
		primary = bucket.NewRedisBucketStore(rc.Client)
		opts = append(opts,
			rlmiddleware.WithFallback(memory),
			rlmiddleware.WithBreaker(circuit.New("ratelimit-redis")),
		)
		checks.RegisterCheck("redis", rc.Health, health.Optional())
		rc.RegisterPoolMetrics(reg)
		log.Info("rate limiting backed by redis")
	}

	return &rateLimiter{
		middleware: rlmiddleware.New(primary, log, opts...),
		memory:     memory,
		redis:      rc,
		log:        log,
	}, nil
}

// prune drops idle in-memory windows until ctx is done.
func (l *rateLimiter) prune(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := l.memory.Prune(); n > 0 {
				l.log.Debug("pruned rate limit windows", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *rateLimiter) Close() {
	if l.redis != nil {
		l.redis.Close() //nolint:errcheck // shutdown path
	}
}
