// Package codes issues and consumes the short one-time codes used for email
// verification and passwordless login.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"warden/internal/auth/models"
	codestore "warden/internal/auth/store/code"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
	"warden/pkg/secrets"
)

const (
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 5
)

// ErrInvalidCode covers every way a submission can fail: nothing issued,
// wrong code, expired, or already used. Callers cannot tell them apart.
var ErrInvalidCode = errors.New("invalid or expired code")

type Store interface {
	Upsert(ctx context.Context, c *models.OneTimeCode) error
	Find(ctx context.Context, userID id.UserID, purpose models.Purpose) (*models.OneTimeCode, error)
	Consume(ctx context.Context, codeID id.CodeID) error
}

type Issuer struct {
	store  Store
	hasher *secrets.Hasher
	ttl    map[models.Purpose]time.Duration
	now    func() time.Time
	random io.Reader
}

type Option func(*Issuer)

// WithTTL overrides the lifetime of codes issued for purpose. Non-positive values are ignored.
func WithTTL(purpose models.Purpose, ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl[purpose] = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRandom replaces the entropy source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

func New(store Store, hasher *secrets.Hasher, opts ...Option) *Issuer {
	i := &Issuer{
		store:  store,
		hasher: hasher,
		ttl: map[models.Purpose]time.Duration{
			models.PurposeEmailVerification: models.PurposeEmailVerification.DefaultTTL(),
			models.PurposeLogin:             models.PurposeLogin.DefaultTTL(),
		},
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL reports the lifetime of codes issued for purpose.
func (i *Issuer) TTL(purpose models.Purpose) time.Duration {
	return i.ttl[purpose]
}

// Issue generates a fresh code for (userID, purpose), replacing any previous
// one, and returns the plaintext. Only the hash is stored.
func (i *Issuer) Issue(ctx context.Context, userID id.UserID, purpose models.Purpose) (string, error) {
	if !purpose.IsValid() {
		return "", fmt.Errorf("issue code: unknown purpose %q", purpose)
	}
	plain, err := i.generate()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	hash, err := i.hasher.Hash(plain)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	now := i.now()
	record := &models.OneTimeCode{
		ID:        id.NewCodeID(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: now.Add(i.ttl[purpose]),
		CreatedAt: now,
	}
	if err := i.store.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return plain, nil
}

func (i *Issuer) generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	bound := big.NewInt(int64(len(Alphabet)))
	for range Length {
		n, err := rand.Int(i.random, bound)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Consume checks submitted against the live code for (userID, purpose) and
// deletes it on a match. Infrastructure failures are returned as-is; every
// other failure is ErrInvalidCode.
func (i *Issuer) Consume(ctx context.Context, userID id.UserID, purpose models.Purpose, submitted string) error {
	submitted = strings.TrimSpace(submitted)
	if len(submitted) != Length {
		return ErrInvalidCode
	}
	record, err := i.store.Find(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("find code: %w", err)
	}
	if record.IsExpired(i.now()) || !i.hasher.Matches(submitted, record.CodeHash) {
		return ErrInvalidCode
	}
	if err := i.store.Consume(ctx, record.ID); err != nil {
		if errors.Is(err, codestore.ErrConsumed) {
			return ErrInvalidCode
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}
