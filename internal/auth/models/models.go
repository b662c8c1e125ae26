package models

import (
	"math"
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// User is an account. A user moves Unverified -> EmailVerified -> Active,
// then toggles between Active and Inactive by admin action. OAuth-created
// and OAuth-linked users enter directly at Active.
type User struct {
	ID            id.UserID
	Username      string
	Email         string
	EmailVerified bool
	Active        bool
	IsAdmin       bool
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRegisteredUser builds an unverified, inactive, non-admin account.
func NewRegisteredUser(username, email string, now time.Time) *User {
	return &User{
		ID:        id.NewUserID(),
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewOAuthUser builds an account trusted by an OAuth provider: verified and active.
func NewOAuthUser(username, email, image string, now time.Time) *User {
	return &User{
		ID:            id.NewUserID(),
		Username:      username,
		Email:         email,
		EmailVerified: true,
		Active:        true,
		Image:         image,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// VerifyEmail moves Unverified to EmailVerified.
func (u *User) VerifyEmail(now time.Time) error {
	if u.EmailVerified {
		return dErrors.New(dErrors.CodeConflict, "email already verified")
	}
	u.EmailVerified = true
	u.UpdatedAt = now
	return nil
}

// CanRequestLogin reports why a login code may not be issued, if anything.
func (u *User) CanRequestLogin() error {
	if !u.EmailVerified {
		return dErrors.New(dErrors.CodeForbidden, "verify your email address before logging in")
	}
	if !u.Active {
		return dErrors.New(dErrors.CodeForbidden, "your account is pending admin activation")
	}
	return nil
}

// Activate is the admin gate from EmailVerified (or Inactive) to Active.
func (u *User) Activate(now time.Time) error {
	if u.Active {
		return dErrors.New(dErrors.CodeConflict, "user is already active")
	}
	if !u.EmailVerified {
		return dErrors.New(dErrors.CodeBadRequest, "user must verify email before activation")
	}
	u.Active = true
	u.UpdatedAt = now
	return nil
}

func (u *User) Deactivate(now time.Time) error {
	if !u.Active {
		return dErrors.New(dErrors.CodeConflict, "user is already inactive")
	}
	u.Active = false
	u.UpdatedAt = now
	return nil
}

// TrustOAuth applies the OAuth trust escalation for an email-collision link.
func (u *User) TrustOAuth(image string, now time.Time) {
	u.EmailVerified = true
	u.Active = true
	if image != "" {
		u.Image = image
	}
	u.UpdatedAt = now
}

// RefreshFromAssertion copies non-empty provider values onto the user and
// reports whether anything changed. Activation state is never touched.
func (u *User) RefreshFromAssertion(email, image string, now time.Time) bool {
	changed := false
	if email != "" && email != u.Email {
		u.Email = email
		changed = true
	}
	if image != "" && image != u.Image {
		u.Image = image
		changed = true
	}
	if changed {
		u.UpdatedAt = now
	}
	return changed
}

// OAuthAccount links a user to one identity at one provider.
type OAuthAccount struct {
	ID         id.OAuthAccountID
	UserID     id.UserID
	Provider   id.Provider
	ProviderID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewOAuthAccount(userID id.UserID, provider id.Provider, providerID string, now time.Time) *OAuthAccount {
	return &OAuthAccount{
		ID:         id.NewOAuthAccountID(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Purpose scopes a one-time code.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposeLogin             Purpose = "login"
)

func (p Purpose) IsValid() bool {
	return p == PurposeEmailVerification || p == PurposeLogin
}

// DefaultTTL is the lifetime of a freshly issued code.
func (p Purpose) DefaultTTL() time.Duration {
	if p == PurposeLogin {
		return 5 * time.Minute
	}
	return 15 * time.Minute
}

// OneTimeCode is the stored form of an issued code; only its hash is kept.
type OneTimeCode struct {
	ID        id.CodeID
	UserID    id.UserID
	Purpose   Purpose
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// OAuthAssertion is what a provider tells us about an identity.
type OAuthAssertion struct {
	Provider   id.Provider
	ProviderID string
	Email      string
	Name       string
	Image      string
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Page  int
	Limit int
	// Provider is a provider name, id.ProviderFilterPasswordless, or empty for any.
	Provider string
	Active   *bool
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Offset is the number of rows to skip for Page. It saturates at
// math.MaxInt, so a page far past the end reads as empty instead of wrapping.
func (f UserFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// UserWithAccounts is a listing row.
type UserWithAccounts struct {
	User     *User
	Accounts []*OAuthAccount
}
