package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I POST to "([^"]*)" (\d+) times with body '([^']*)'$`, steps.postNTimes)
	ctx.Step(`^every response before the last should not be rate limited$`, steps.earlierResponsesNotLimited)
	ctx.Step(`^the response should be rate limited$`, steps.responseShouldBeRateLimited)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) postNTimes(ctx context.Context, path string, n int, body string) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return fmt.Errorf("step body is not JSON: %w", err)
	}
	s.statuses = s.statuses[:0]
	for range n {
		if err := s.tc.POST(path, payload); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) earlierResponsesNotLimited(ctx context.Context) error {
	for i, status := range s.statuses[:max(len(s.statuses)-1, 0)] {
		if status == http.StatusTooManyRequests {
			return fmt.Errorf("request %d was rate limited", i+1)
		}
	}
	return nil
}

func (s *ratelimitSteps) responseShouldBeRateLimited(ctx context.Context) error {
	if status := s.tc.GetLastResponseStatus(); status != http.StatusTooManyRequests {
		return fmt.Errorf("expected status 429 but got %d: %s", status, s.tc.GetLastResponseBody())
	}
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("429 response is missing Retry-After")
	}
	return nil
}
