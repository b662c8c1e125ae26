package models

import "time"

// Transport shapes. Field names follow the public JSON contract.

type RegisterResult struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Code    string `json:"code,omitempty"`
}

type VerifyEmailResult struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginResult struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type LinkedAccount struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

type UserProfile struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	IsAdmin       bool            `json:"isAdmin"`
	Active        bool            `json:"active"`
	EmailVerified bool            `json:"emailVerified"`
	Image         *string         `json:"image"`
	CreatedAt     time.Time       `json:"createdAt"`
	OAuthAccounts []LinkedAccount `json:"oauthAccounts"`
}

// SessionResult is returned by verify-login and oauth.
type SessionResult struct {
	AccessToken string      `json:"access_token"`
	User        UserProfile `json:"user"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
	IsAdmin  bool   `json:"isAdmin"`
}

type StatusChangeResult struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

type UserPage struct {
	Users      []UserProfile `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

type RegistrationHealth struct {
	Healthy bool `json:"healthy"`
}

// NewUserProfile renders u with its linked provider identities.
func NewUserProfile(u *User, accounts []*OAuthAccount) UserProfile {
	p := UserProfile{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		IsAdmin:       u.IsAdmin,
		Active:        u.Active,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		OAuthAccounts: make([]LinkedAccount, 0, len(accounts)),
	}
	if u.Image != "" {
		img := u.Image
		p.Image = &img
	}
	for _, a := range accounts {
		p.OAuthAccounts = append(p.OAuthAccounts, LinkedAccount{Provider: a.Provider.String(), ProviderID: a.ProviderID})
	}
	return p
}

func NewUserSummary(u *User) UserSummary {
	return UserSummary{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Active:   u.Active,
		IsAdmin:  u.IsAdmin,
	}
}
