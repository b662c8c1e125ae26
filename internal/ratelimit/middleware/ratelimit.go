package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"warden/internal/ratelimit/config"
	"warden/internal/ratelimit/models"
	"warden/pkg/platform/circuit"
	"warden/pkg/platform/httputil"
	"warden/pkg/platform/privacy"
	"warden/pkg/requestcontext"
)

// Limiter counts a request against a bucket.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// ErrorCounter records limiter failures by endpoint class.
type ErrorCounter interface {
	RateLimitCheckFailed(class string)
}

type Middleware struct {
	limiter  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	config   *config.Config
	errors   ErrorCounter
	logger   *slog.Logger
}

type Option func(*Middleware)

// WithFallback sets the limiter used while the primary is failing.
// Without one, limiter failures let the request through.
func WithFallback(l Limiter) Option {
	return func(m *Middleware) {
		m.fallback = l
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(m *Middleware) {
		if cfg != nil {
			m.config = cfg
		}
	}
}

func WithErrorCounter(c ErrorCounter) Option {
	return func(m *Middleware) {
		m.errors = c
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		config:  config.DefaultConfig(),
		breaker: circuit.New("ratelimit", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimit throttles each client IP per route using the budget of class.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	budget := m.config.For(class)
	limit, window := budget.Requests, budget.Window
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			key := models.Key(class, r.URL.Path, ip)

			result, degraded := m.check(ctx, class, key, ip, limit, window)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"path", r.URL.Path,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check consults the primary limiter, switching to the fallback while the
// breaker is open. A nil result means the request is let through unchecked.
func (m *Middleware) check(ctx context.Context, class models.EndpointClass, key, ip string, limit int, window time.Duration) (*models.RateLimitResult, bool) {
	if !m.breaker.Allow() && m.fallback != nil {
		return m.checkFallback(ctx, key, limit, window)
	}

	result, err := m.limiter.Allow(ctx, key, limit, window)
	if err == nil {
		if m.breaker.RecordSuccess() {
			m.logger.InfoContext(ctx, "rate limiter recovered", "breaker", m.breaker.Name())
		}
		return result, false
	}

	if m.errors != nil {
		m.errors.RateLimitCheckFailed(string(class))
	}
	m.logger.ErrorContext(ctx, "failed to check rate limit",
		"error", err,
		"class", string(class),
		"ip_prefix", privacy.AnonymizeIP(ip),
	)
	if m.breaker.RecordFailure() {
		m.logger.WarnContext(ctx, "rate limiter degraded", "breaker", m.breaker.Name())
	}
	if m.fallback == nil {
		return nil, false
	}
	return m.checkFallback(ctx, key, limit, window)
}

func (m *Middleware) checkFallback(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, bool) {
	result, err := m.fallback.Allow(ctx, key, limit, window)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback rate limiter failed", "error", err)
		return nil, true
	}
	return result, true
}

// addRateLimitHeaders adds X-RateLimit-* headers to the response.
func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests, try again later",
		RetryAfter:       result.RetryAfter,
	})
}
