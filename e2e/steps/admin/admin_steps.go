package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// adminToken is the token name the admin session is saved under.
const adminToken = "admin"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetResponseString(field string) (string, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	AdminEmail() string
	SaveToken(name, token string)
	Token(name string) (string, error)
	UserID(username string) (string, error)
}

// RegisterSteps registers admin-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^I am signed in as the admin$`, steps.signInAsAdmin)
	ctx.Step(`^I activate "([^"]*)"$`, steps.activate)
	ctx.Step(`^I deactivate "([^"]*)"$`, steps.deactivate)
	ctx.Step(`^I activate "([^"]*)" as "([^"]*)"$`, steps.activateAs)
	ctx.Step(`^I activate user id "([^"]*)"$`, steps.activateByID)
	ctx.Step(`^I list users with query "([^"]*)"$`, steps.listUsers)
	ctx.Step(`^the user list total should be (\d+)$`, steps.userListTotalShouldBe)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) signInAsAdmin(ctx context.Context) error {
	email := s.tc.AdminEmail()
	if err := s.tc.POST("/v1/auth/login", map[string]any{"identifier": email}); err != nil {
		return err
	}
	code, err := s.tc.GetResponseString("code")
	if err != nil {
		return fmt.Errorf("admin login: %w (is the server in development mode?)\nResponse: %s", err, s.tc.GetLastResponseBody())
	}
	if err := s.tc.POST("/v1/auth/verify-login", map[string]any{"identifier": email, "code": code}); err != nil {
		return err
	}
	token, err := s.tc.GetResponseString("access_token")
	if err != nil {
		return fmt.Errorf("admin verify-login: %w\nResponse: %s", err, s.tc.GetLastResponseBody())
	}
	s.tc.SaveToken(adminToken, token)
	return nil
}

func (s *adminSteps) statusChange(path, userID, tokenName string) error {
	token, err := s.tc.Token(tokenName)
	if err != nil {
		return err
	}
	return s.tc.POSTWithHeaders(path, map[string]any{"userId": userID}, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func (s *adminSteps) activate(ctx context.Context, username string) error {
	return s.activateAs(ctx, username, adminToken)
}

func (s *adminSteps) activateAs(ctx context.Context, username, tokenName string) error {
	userID, err := s.tc.UserID(username)
	if err != nil {
		return err
	}
	return s.statusChange("/v1/auth/activate", userID, tokenName)
}

func (s *adminSteps) activateByID(ctx context.Context, userID string) error {
	return s.statusChange("/v1/auth/activate", userID, adminToken)
}

func (s *adminSteps) deactivate(ctx context.Context, username string) error {
	userID, err := s.tc.UserID(username)
	if err != nil {
		return err
	}
	return s.statusChange("/v1/auth/deactivate", userID, adminToken)
}

func (s *adminSteps) listUsers(ctx context.Context, query string) error {
	token, err := s.tc.Token(adminToken)
	if err != nil {
		return err
	}
	path := "/v1/auth/users"
	if query != "" {
		path += "?" + query
	}
	return s.tc.GET(path, map[string]string{"Authorization": "Bearer " + token})
}

func (s *adminSteps) userListTotalShouldBe(ctx context.Context, expected int) error {
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("list users: status %d: %s", status, s.tc.GetLastResponseBody())
	}
	total, err := s.tc.GetResponseField("total")
	if err != nil {
		return err
	}
	if got, ok := total.(float64); !ok || int(got) != expected {
		return fmt.Errorf("expected total %d but got %v", expected, total)
	}
	return nil
}
