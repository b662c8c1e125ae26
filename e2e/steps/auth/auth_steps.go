package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseString(field string) (string, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SaveCode(identifier, code string)
	Code(identifier string) (string, error)
	SaveToken(name, token string)
	SaveUserID(username, userID string)
}

// RegisterSteps registers the registration, login and OAuth steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I register "([^"]*)" with email "([^"]*)"$`, steps.register)
	ctx.Step(`^I verify the email "([^"]*)" with the issued code$`, steps.verifyEmailWithIssuedCode)
	ctx.Step(`^I verify the email "([^"]*)" with code "([^"]*)"$`, steps.verifyEmail)
	ctx.Step(`^"([^"]*)" has registered and verified "([^"]*)"$`, steps.registeredAndVerified)

	ctx.Step(`^I request a login code for "([^"]*)"$`, steps.requestLoginCode)
	ctx.Step(`^I verify the login for "([^"]*)" with the issued code$`, steps.verifyLoginWithIssuedCode)
	ctx.Step(`^I verify the login for "([^"]*)" with code "([^"]*)"$`, steps.verifyLogin)

	ctx.Step(`^I sign in with "([^"]*)" as "([^"]*)" using email "([^"]*)" and name "([^"]*)"$`, steps.oauthSignIn)
	ctx.Step(`^I sign in with "([^"]*)" as "([^"]*)" without an email$`, steps.oauthSignInWithoutEmail)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) register(ctx context.Context, username, email string) error {
	if err := s.tc.POST("/v1/auth/register", map[string]any{"username": username, "email": email}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return nil
	}
	userID, err := s.tc.GetResponseString("userId")
	if err != nil {
		return err
	}
	s.tc.SaveUserID(username, userID)
	if code, err := s.tc.GetResponseString("code"); err == nil {
		s.tc.SaveCode(email, code)
	}
	return nil
}

func (s *authSteps) verifyEmail(ctx context.Context, email, code string) error {
	return s.tc.POST("/v1/auth/verify-email", map[string]any{"email": email, "code": code})
}

func (s *authSteps) verifyEmailWithIssuedCode(ctx context.Context, email string) error {
	code, err := s.tc.Code(email)
	if err != nil {
		return err
	}
	return s.verifyEmail(ctx, email, code)
}

func (s *authSteps) registeredAndVerified(ctx context.Context, username, email string) error {
	if err := s.register(ctx, username, email); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusCreated {
		return fmt.Errorf("register %s: status %d: %s", username, status, s.tc.GetLastResponseBody())
	}
	if err := s.verifyEmailWithIssuedCode(ctx, email); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("verify %s: status %d: %s", email, status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *authSteps) requestLoginCode(ctx context.Context, identifier string) error {
	if err := s.tc.POST("/v1/auth/login", map[string]any{"identifier": identifier}); err != nil {
		return err
	}
	if code, err := s.tc.GetResponseString("code"); err == nil {
		s.tc.SaveCode(identifier, code)
	}
	return nil
}

func (s *authSteps) verifyLogin(ctx context.Context, identifier, code string) error {
	if err := s.tc.POST("/v1/auth/verify-login", map[string]any{"identifier": identifier, "code": code}); err != nil {
		return err
	}
	if token, err := s.tc.GetResponseString("access_token"); err == nil {
		s.tc.SaveToken(identifier, token)
	}
	return nil
}

func (s *authSteps) verifyLoginWithIssuedCode(ctx context.Context, identifier string) error {
	code, err := s.tc.Code(identifier)
	if err != nil {
		return err
	}
	return s.verifyLogin(ctx, identifier, code)
}

func (s *authSteps) oauth(body map[string]any, tokenName string) error {
	if err := s.tc.POST("/v1/auth/oauth", body); err != nil {
		return err
	}
	if token, err := s.tc.GetResponseString("access_token"); err == nil {
		s.tc.SaveToken(tokenName, token)
		if username, err := s.tc.GetResponseString("user.username"); err == nil {
			if userID, err := s.tc.GetResponseString("user.id"); err == nil {
				s.tc.SaveUserID(username, userID)
			}
		}
	}
	return nil
}

func (s *authSteps) oauthSignIn(ctx context.Context, provider, providerID, email, name string) error {
	return s.oauth(map[string]any{
		"provider":   provider,
		"providerId": providerID,
		"email":      email,
		"name":       name,
	}, provider+":"+providerID)
}

func (s *authSteps) oauthSignInWithoutEmail(ctx context.Context, provider, providerID string) error {
	return s.oauth(map[string]any{
		"provider":   provider,
		"providerId": providerID,
	}, provider+":"+providerID)
}
