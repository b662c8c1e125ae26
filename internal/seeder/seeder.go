package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/auth/models"
	"warden/pkg/platform/privacy"
	"warden/pkg/platform/sentinel"
)

// UserStore defines methods for seeding users
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// Seeder creates the accounts a fresh deployment needs before any admin exists.
type Seeder struct {
	users  UserStore
	logger *slog.Logger
	now    func() time.Time
}

func New(users UserStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureAdmin makes sure a verified, active admin with email exists. An
// existing account with that email is promoted in place.
func (s *Seeder) EnsureAdmin(ctx context.Context, email, username string) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin && existing.Active && existing.EmailVerified {
			return existing, nil
		}
		existing.IsAdmin = true
		existing.Active = true
		existing.EmailVerified = true
		existing.UpdatedAt = s.now()
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("promote bootstrap admin: %w", err)
		}
		s.logger.InfoContext(ctx, "bootstrap admin promoted", "email", privacy.MaskEmail(email))
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, fmt.Errorf("find bootstrap admin: %w", err)
	}

	admin := models.NewRegisteredUser(username, email, s.now())
	admin.IsAdmin = true
	admin.Active = true
	admin.EmailVerified = true
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.InfoContext(ctx, "bootstrap admin created",
		"email", privacy.MaskEmail(email),
		"user_id", admin.ID.String(),
	)
	return admin, nil
}

// SeedDemo adds one account in each lifecycle state for local development.
// Accounts that already exist are left alone.
func (s *Seeder) SeedDemo(ctx context.Context) error {
	demo := []struct {
		username string
		verified bool
		active   bool
	}{
		{"demo_unverified", false, false},
		{"demo_pending", true, false},
		{"demo_active", true, true},
	}

	created := 0
	for _, d := range demo {
		u := models.NewRegisteredUser(d.username, d.username+"@demo.local", s.now())
		u.EmailVerified = d.verified
		u.Active = d.active
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("failed to seed %s: %w", d.username, err)
		}
		created++
	}
	s.logger.InfoContext(ctx, "demo data seeded", "users", created)
	return nil
}
