package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	authhandler "warden/internal/auth/handler"
	"warden/internal/platform/health"
	"warden/internal/platform/metrics"
	"warden/pkg/platform/middleware/admin"
	"warden/pkg/platform/middleware/auth"
	"warden/pkg/platform/middleware/metadata"
	"warden/pkg/platform/middleware/request"
	"warden/pkg/platform/middleware/requesttime"
	"warden/pkg/validation"
)

// Deps are the collaborators the router mounts. Registry and Latency may be
// nil, in which case /metrics is not served and latency is not recorded.
type Deps struct {
	Logger         *slog.Logger
	Auth           *authhandler.Handler
	Tokens         auth.JWTValidator
	Accounts       auth.AccountLookup
	Health         *health.Handler
	Registry       *prometheus.Registry
	Latency        *request.Metrics
	AllowedOrigins []string
	TrustedProxies []netip.Prefix
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: d.TrustedProxies}).Handler)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Latency(d.Latency))
	r.Use(request.Timeout(d.RequestTimeout))
	r.Use(request.CORS(d.AllowedOrigins))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Registry != nil {
		r.Handle("/metrics", metrics.Handler(d.Registry))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(validation.MaxBodySize))

		d.Auth.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.Tokens, d.Accounts, d.Logger))
			r.Use(admin.RequireAdmin(d.Logger))
			d.Auth.RegisterAdmin(r)
		})
	})

	return r
}
