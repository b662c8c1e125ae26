package models

import (
	"strings"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	s "warden/pkg/string"
	"warden/pkg/validation"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email,max=320"`
}

func (r *RegisterRequest) Normalize() {
	s.TrimStrings(&r.Username, &r.Email)
	r.Email = strings.ToLower(r.Email)
}

func (r *RegisterRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if id.IsPlaceholderEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid email")
	}
	return nil
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=5,alphanum"`
}

func (r *VerifyEmailRequest) Normalize() {
	s.TrimStrings(&r.Email, &r.Code)
	r.Email = strings.ToLower(r.Email)
}

func (r *VerifyEmailRequest) Validate() error { return validation.Validate(r) }

// LoginRequest identifies the user by username or email.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,notblank,max=320"`
}

func (r *LoginRequest) Normalize() { s.TrimStrings(&r.Identifier) }

func (r *LoginRequest) Validate() error { return validation.Validate(r) }

type VerifyLoginRequest struct {
	Identifier string `json:"identifier" validate:"required,notblank,max=320"`
	Code       string `json:"code" validate:"required,len=5,alphanum"`
}

func (r *VerifyLoginRequest) Normalize() { s.TrimStrings(&r.Identifier, &r.Code) }

func (r *VerifyLoginRequest) Validate() error { return validation.Validate(r) }

type OAuthVerifyRequest struct {
	Provider   string `json:"provider" validate:"required,oneof=google github discord gitlab"`
	ProviderID string `json:"providerId" validate:"required,notblank,max=255"`
	Email      string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Name       string `json:"name,omitempty" validate:"max=255"`
	Image      string `json:"image,omitempty" validate:"omitempty,url,max=2048"`
}

func (r *OAuthVerifyRequest) Normalize() {
	s.TrimStrings(&r.Provider, &r.ProviderID, &r.Email, &r.Name, &r.Image)
	r.Provider = strings.ToLower(r.Provider)
	r.Email = strings.ToLower(r.Email)
}

func (r *OAuthVerifyRequest) Validate() error { return validation.Validate(r) }

// Assertion converts the request into resolver input.
func (r *OAuthVerifyRequest) Assertion() OAuthAssertion {
	return OAuthAssertion{
		Provider:   id.Provider(r.Provider),
		ProviderID: r.ProviderID,
		Email:      r.Email,
		Name:       r.Name,
		Image:      r.Image,
	}
}

// UserIDRequest is the body of activate and deactivate.
type UserIDRequest struct {
	UserID string `json:"userId" validate:"required,notblank"`
}

func (r *UserIDRequest) Normalize() { s.TrimStrings(&r.UserID) }

func (r *UserIDRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if _, err := id.ParseUserID(r.UserID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "user_id must be a valid id")
	}
	return nil
}
