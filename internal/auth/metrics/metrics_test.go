package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.UsersCreated.WithLabelValues("registration").Inc()
	m.IncrementAuthFailure("verify_login", "invalid_credential")
	m.EmailFailed("login_code")
	m.RateLimitCheckFailed("auth")
	m.ObserveDuration("register", time.Now().Add(-10*time.Millisecond))

	assert.InDelta(t, 1, testutil.ToFloat64(m.UsersCreated.WithLabelValues("registration")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthFailures.WithLabelValues("verify_login", "invalid_credential")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EmailFailures.WithLabelValues("login_code")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RateLimitCheckErrors.WithLabelValues("auth")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "warden_operation_duration_seconds")
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
