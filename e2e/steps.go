package e2e

import (
	"github.com/cucumber/godog"

	"warden/e2e/steps/admin"
	"warden/e2e/steps/auth"
	"warden/e2e/steps/common"
	"warden/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
