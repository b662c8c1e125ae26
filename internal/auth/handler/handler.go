package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"warden/internal/auth/models"
	rlmodels "warden/internal/ratelimit/models"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the account lifecycle operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResult, error)
	VerifyEmail(ctx context.Context, req *models.VerifyEmailRequest) (*models.VerifyEmailResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	VerifyLogin(ctx context.Context, req *models.VerifyLoginRequest) (*models.SessionResult, error)
	OAuthVerify(ctx context.Context, req *models.OAuthVerifyRequest) (*models.SessionResult, error)
	Activate(ctx context.Context, req *models.UserIDRequest) (*models.StatusChangeResult, error)
	Deactivate(ctx context.Context, req *models.UserIDRequest) (*models.StatusChangeResult, error)
	ListUsers(ctx context.Context, f models.UserFilter) (*models.UserPage, error)
	RegistrationHealth(ctx context.Context) *models.RegistrationHealth
}

// Throttle returns the rate limit middleware for an endpoint class.
type Throttle func(class rlmodels.EndpointClass) func(http.Handler) http.Handler

// Handler serves the /auth endpoints.
type Handler struct {
	auth     Service
	logger   *slog.Logger
	throttle Throttle
}

type Option func(*Handler)

func WithThrottle(t Throttle) Option {
	return func(h *Handler) {
		if t != nil {
			h.throttle = t
		}
	}
}

func New(auth Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		auth:   auth,
		logger: logger,
		throttle: func(rlmodels.EndpointClass) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.With(h.throttle(rlmodels.ClassCredential)).Post("/auth/register", h.HandleRegister)
	r.With(h.throttle(rlmodels.ClassVerify)).Post("/auth/verify-email", h.HandleVerifyEmail)
	r.With(h.throttle(rlmodels.ClassCredential)).Post("/auth/login", h.HandleLogin)
	r.With(h.throttle(rlmodels.ClassVerify)).Post("/auth/verify-login", h.HandleVerifyLogin)
	r.With(h.throttle(rlmodels.ClassVerify)).Post("/auth/oauth", h.HandleOAuth)
}

// RegisterAdmin mounts the admin routes. Authentication and the admin check
// are applied by the parent router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/auth/registration/health", h.HandleRegistrationHealth)
	r.Get("/auth/users", h.HandleListUsers)
	r.With(h.throttle(rlmodels.ClassAdmin)).Post("/auth/activate", h.HandleActivate)
	r.With(h.throttle(rlmodels.ClassAdmin)).Post("/auth/deactivate", h.HandleDeactivate)
}

// HandleRegister implements POST /auth/register.
//
// Input: { "username": "bob", "email": "bob@example.com" }
// Output: { "message": "...", "userId": "...", "code": "A1B2C" }  (code in development only)
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusCreated, h.auth.Register)
}

// HandleVerifyEmail implements POST /auth/verify-email.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.VerifyEmail)
}

// HandleLogin implements POST /auth/login. The identifier is a username or an email.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.Login)
}

// HandleVerifyLogin implements POST /auth/verify-login.
//
// Output: { "access_token": "...", "user": { ... } }
func (h *Handler) HandleVerifyLogin(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.VerifyLogin)
}

// HandleOAuth implements POST /auth/oauth. The caller has already completed
// the provider flow and forwards the asserted identity.
//
// Input: { "provider": "github", "providerId": "42", "email": "...", "name": "...", "image": "..." }
func (h *Handler) HandleOAuth(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.OAuthVerify)
}

func (h *Handler) HandleRegistrationHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.auth.RegistrationHealth(r.Context()))
}

// HandleListUsers implements GET /auth/users?page=&limit=&provider=&active=.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f, err := parseUserFilter(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid list users query",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	page, err := h.auth.ListUsers(ctx, f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.Activate)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, http.StatusOK, h.auth.Deactivate)
}

// serve binds the request body to Req, runs op and renders the result with
// status. Bind failures are logged at warn since they never reach the service.
func serve[Req, Res any](
	h *Handler,
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(context.Context, *Req) (*Res, error),
) {
	ctx := r.Context()
	req, err := httputil.Bind[Req](r)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	res, err := op(ctx, req)
	if err != nil {
		if httputil.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "request failed",
				"error", err,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, res)
}

func parseUserFilter(r *http.Request) (models.UserFilter, error) {
	q := r.URL.Query()
	var f models.UserFilter

	var err error
	if f.Page, err = optionalPositiveInt(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.Limit, err = optionalPositiveInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	f.Provider = strings.ToLower(strings.TrimSpace(q.Get("provider")))

	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeValidation, "active must be true or false")
		}
		f.Active = &active
	}
	return f, nil
}

func optionalPositiveInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be a positive integer")
	}
	return n, nil
}
