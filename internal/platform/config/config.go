package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	rlconfig "warden/internal/ratelimit/config"
)

// DevJWTSecret is the signing key used when JWT_SECRET is unset. It is
// refused outside the development environment.
const DevJWTSecret = "dev-secret-key-change-in-production"

const EnvDevelopment = "development"

// Server captures process-level configuration.
type Server struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	AppName        string        `env:"APP_NAME" envDefault:"Warden"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`

	JWT       JWT
	Database  Database
	Redis     Redis
	Kafka     Kafka
	Email     Email
	Codes     Codes
	Retention Retention
	Bootstrap Bootstrap
	Tracing   Tracing
	RateLimit RateLimit
}

type JWT struct {
	Secret     string        `env:"JWT_SECRET" envDefault:"dev-secret-key-change-in-production"`
	Expiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"warden"`
}

// Database is optional; an empty URL selects the in-memory stores.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// Redis is optional; an empty URL selects the in-memory rate limiter.
type Redis struct {
	URL      string `env:"REDIS_URL"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

// Kafka is optional; no brokers selects the log-only audit sink.
type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"AUDIT_TOPIC" envDefault:"warden.audit"`
	ClientID   string   `env:"KAFKA_CLIENT_ID" envDefault:"warden"`
}

type Email struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"EMAIL_FROM" envDefault:"Warden <noreply@warden.local>"`
	ResendURL    string `env:"RESEND_API_URL" envDefault:"https://api.resend.com/emails"`
}

type Codes struct {
	EmailVerificationTTL time.Duration `env:"EMAIL_CODE_TTL" envDefault:"15m"`
	LoginTTL             time.Duration `env:"LOGIN_CODE_TTL" envDefault:"5m"`
	BcryptCost           int           `env:"CODE_BCRYPT_COST" envDefault:"10"`
}

type Retention struct {
	UnverifiedDays    int `env:"UNVERIFIED_CLEANUP_DAYS" envDefault:"7"`
	OAuthInactiveDays int `env:"OAUTH_INACTIVE_DAYS" envDefault:"365"`
}

func (r Retention) UnverifiedWindow() time.Duration {
	return time.Duration(r.UnverifiedDays) * 24 * time.Hour
}

func (r Retention) OAuthInactiveWindow() time.Duration {
	return time.Duration(r.OAuthInactiveDays) * 24 * time.Hour
}

type Bootstrap struct {
	AdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME" envDefault:"admin"`
	// SeedDemo adds demo accounts; honored only in development.
	SeedDemo bool `env:"SEED_DEMO_DATA"`
}

// Tracing exports spans over OTLP/HTTP when Endpoint is set.
type Tracing struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"warden"`
}

// RateLimit overrides the per-IP budget of each endpoint class.
type RateLimit struct {
	Credential rlconfig.Limit `env:"RATE_LIMIT_CREDENTIAL" envDefault:"3/5m"`
	Verify     rlconfig.Limit `env:"RATE_LIMIT_VERIFY" envDefault:"10/1m"`
	Admin      rlconfig.Limit `env:"RATE_LIMIT_ADMIN" envDefault:"20/1m"`
}

// IsDevelopment reports whether one-time codes may be echoed in responses.
func (s Server) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// FromEnv parses the process environment.
func FromEnv() (Server, error) {
	return parse(env.Options{})
}

// FromMap parses a fixed set of variables, ignoring the process environment.
func FromMap(vars map[string]string) (Server, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that are unsafe or unusable.
func (s Server) Validate() error {
	var errs []error
	if s.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if !s.IsDevelopment() && s.JWT.Secret == DevJWTSecret {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set when ENVIRONMENT=%s", s.Environment))
	}
	if s.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	if s.Codes.EmailVerificationTTL <= 0 || s.Codes.LoginTTL <= 0 {
		errs = append(errs, errors.New("code TTLs must be positive"))
	}
	if s.Retention.UnverifiedDays <= 0 || s.Retention.OAuthInactiveDays <= 0 {
		errs = append(errs, errors.New("retention windows must be positive"))
	}
	return errors.Join(errs...)
}
