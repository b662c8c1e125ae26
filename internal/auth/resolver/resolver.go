// Package resolver maps an OAuth provider assertion to exactly one local user.
//
// Resolution order is fixed: an existing link for (provider, providerId) wins;
// otherwise a user with the asserted email gets the link; otherwise a new user
// is created with a derived, unique username.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"warden/internal/auth/models"
	userstore "warden/internal/auth/store/user"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	platformsync "warden/pkg/platform/sync"
	s "warden/pkg/string"
)

const (
	MinUsernameLength          = 3
	MaxUsernameLength          = 30
	DefaultMaxUsernameAttempts = 100
)

type Store interface {
	FindAccount(ctx context.Context, provider id.Provider, providerID string) (*models.OAuthAccount, error)
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	TouchAccount(ctx context.Context, accountID id.OAuthAccountID, now time.Time) error
	LinkAccount(ctx context.Context, u *models.User, a *models.OAuthAccount) error
	CreateWithAccount(ctx context.Context, u *models.User, a *models.OAuthAccount) error
	ListAccountsByUser(ctx context.Context, userID id.UserID) ([]*models.OAuthAccount, error)
}

// Outcome says which branch resolved the assertion.
type Outcome string

const (
	OutcomeExisting Outcome = "existing"
	OutcomeLinked   Outcome = "linked"
	OutcomeCreated  Outcome = "created"
)

type Result struct {
	User     *models.User
	Accounts []*models.OAuthAccount
	Outcome  Outcome
}

// Resolver serializes resolutions of the same identity within the process;
// across instances the store's unique constraints decide.
type Resolver struct {
	store       Store
	now         func() time.Time
	maxAttempts int
	locks       *platformsync.KeyedMutex
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithMaxUsernameAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func New(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		now:         time.Now,
		maxAttempts: DefaultMaxUsernameAttempts,
		locks:       platformsync.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errRaced(err error) error {
	return dErrors.NewRetryable(dErrors.CodeConflict, "oauth identity changed concurrently, retry the request", err)
}

// Resolve returns the user owning the asserted identity, linking or creating
// one as needed. Lost uniqueness races come back as a retryable Conflict.
func (r *Resolver) Resolve(ctx context.Context, a models.OAuthAssertion) (*Result, error) {
	if !a.Provider.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported oauth provider")
	}
	if strings.TrimSpace(a.ProviderID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "provider_id is required")
	}

	key := string(a.Provider) + ":" + a.ProviderID
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	res, err := r.resolveExisting(ctx, a)
	if err != nil || res != nil {
		return res, err
	}
	res, err = r.linkByEmail(ctx, a, contactEmail(a))
	if err != nil || res != nil {
		return res, err
	}
	return r.create(ctx, a)
}

// contactEmail is the asserted email, or the provider placeholder when the
// provider sent none. A user created without an email keeps the placeholder,
// so a later sign-in after its link was reaped finds the same user again.
func contactEmail(a models.OAuthAssertion) string {
	if a.Email != "" {
		return a.Email
	}
	return a.Provider.PlaceholderEmail(a.ProviderID)
}

func (r *Resolver) resolveExisting(ctx context.Context, a models.OAuthAssertion) (*Result, error) {
	account, err := r.store.FindAccount(ctx, a.Provider, a.ProviderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find oauth account: %w", err)
	}
	u, err := r.store.FindByID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("load linked user: %w", err)
	}
	now := r.now()
	if u.RefreshFromAssertion(a.Email, a.Image, now) {
		if err := r.store.Update(ctx, u); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				return nil, dErrors.Wrap(err, dErrors.CodeConflict, "email already registered")
			}
			return nil, fmt.Errorf("refresh linked user: %w", err)
		}
	}
	if err := r.store.TouchAccount(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("touch oauth account: %w", err)
	}
	return r.result(ctx, u, OutcomeExisting)
}

func (r *Resolver) linkByEmail(ctx context.Context, a models.OAuthAssertion, email string) (*Result, error) {
	u, err := r.store.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if a.Email == "" && !u.EmailVerified {
		// Placeholder addresses only ever belong to OAuth-created users, which are verified.
		return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	now := r.now()
	u.TrustOAuth(a.Image, now)
	if err := r.store.LinkAccount(ctx, u, models.NewOAuthAccount(u.ID, a.Provider, a.ProviderID, now)); err != nil {
		switch {
		case errors.Is(err, userstore.ErrProviderAlreadyLinked):
			// Not retryable: the user holds another identity for this provider.
			return nil, dErrors.Wrap(err, dErrors.CodeConflict,
				fmt.Sprintf("account already linked to another %s identity", a.Provider))
		case errors.Is(err, sentinel.ErrDuplicate):
			return nil, errRaced(err)
		default:
			return nil, fmt.Errorf("link oauth account: %w", err)
		}
	}
	return r.result(ctx, u, OutcomeLinked)
}

func (r *Resolver) create(ctx context.Context, a models.OAuthAssertion) (*Result, error) {
	email := contactEmail(a)
	base := BaseUsername(a.Name, a.Email, a.ProviderID)
	now := r.now()

	for attempt := range r.maxAttempts {
		u := models.NewOAuthUser(Candidate(base, attempt), email, a.Image, now)
		err := r.store.CreateWithAccount(ctx, u, models.NewOAuthAccount(u.ID, a.Provider, a.ProviderID, now))
		switch {
		case err == nil:
			return r.result(ctx, u, OutcomeCreated)
		case errors.Is(err, userstore.ErrUsernameTaken):
			continue
		case errors.Is(err, sentinel.ErrDuplicate):
			return nil, errRaced(err)
		default:
			return nil, fmt.Errorf("create oauth user: %w", err)
		}
	}
	return nil, dErrors.New(dErrors.CodeConflict, "could not allocate a unique username")
}

func (r *Resolver) result(ctx context.Context, u *models.User, outcome Outcome) (*Result, error) {
	accounts, err := r.store.ListAccountsByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list oauth accounts: %w", err)
	}
	return &Result{User: u, Accounts: accounts, Outcome: outcome}, nil
}

// BaseUsername derives the candidate base: the display name lower-cased with
// whitespace runs folded to "_", else the email local part, else "user_<providerId>".
// Runes outside [a-z0-9_-] become "_", and a base shorter than
// MinUsernameLength gets "_<providerId>" appended.
func BaseUsername(name, email, providerID string) string {
	base := s.FoldSpace(name, "_")
	if base == "" {
		if local, _, ok := strings.Cut(email, "@"); ok {
			base = local
		}
	}
	if base == "" {
		base = "user_" + providerID
	}
	base = usernameSafe(base)
	if len(base) < MinUsernameLength {
		base += "_" + usernameSafe(providerID)
	}
	return base
}

func usernameSafe(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, strings.ToLower(v))
}

// Candidate returns the n'th username for base: base itself, then base1,
// base2 and so on, with base cut so the result fits MaxUsernameLength runes.
func Candidate(base string, n int) string {
	suffix := ""
	if n > 0 {
		suffix = strconv.Itoa(n)
	}
	runes := []rune(base)
	if keep := MaxUsernameLength - len(suffix); len(runes) > keep {
		runes = runes[:keep]
	}
	return string(runes) + suffix
}
