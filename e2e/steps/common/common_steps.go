package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
	Token(name string) (string, error)
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the identity service is running$`, steps.serviceIsRunning)

	ctx.Step(`^I POST to "([^"]*)" with empty body$`, steps.postWithEmptyBody)
	ctx.Step(`^I GET "([^"]*)" without authorization$`, steps.getWithoutAuth)
	ctx.Step(`^I GET "([^"]*)" with token "([^"]*)"$`, steps.getWithToken)
	ctx.Step(`^I GET "([^"]*)" as "([^"]*)"$`, steps.getAs)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, steps.responseFieldShouldContain)
	ctx.Step(`^the response header "([^"]*)" should be set$`, steps.responseHeaderShouldBeSet)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, 200)
}

func (s *commonSteps) postWithEmptyBody(ctx context.Context, path string) error {
	return s.tc.POST(path, map[string]any{})
}

func (s *commonSteps) getWithoutAuth(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) getWithToken(ctx context.Context, path, token string) error {
	return s.tc.GET(path, map[string]string{"Authorization": "Bearer " + token})
}

func (s *commonSteps) getAs(ctx context.Context, path, name string) error {
	token, err := s.tc.Token(name)
	if err != nil {
		return err
	}
	return s.getWithToken(ctx, path, token)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, actualStatus, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain: %s\nResponse: %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, field string) error {
	if s.tc.ResponseContains(field) {
		return fmt.Errorf("response unexpectedly contains: %s\nResponse: %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actualValue, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldContain(ctx context.Context, field, expectedSubstring string) error {
	actualValue, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if !strings.Contains(fmt.Sprint(actualValue), expectedSubstring) {
		return fmt.Errorf("field %s: expected to contain %s but got %v", field, expectedSubstring, actualValue)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBeSet(ctx context.Context, name string) error {
	if s.tc.GetLastResponseHeader(name) == "" {
		return fmt.Errorf("response header %s is not set", name)
	}
	return nil
}
