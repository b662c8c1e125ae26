package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the account lifecycle.
type Metrics struct {
	UsersCreated         *prometheus.CounterVec
	CodesIssued          *prometheus.CounterVec
	CodeVerifications    *prometheus.CounterVec
	SessionsIssued       *prometheus.CounterVec
	OAuthResolutions     *prometheus.CounterVec
	StatusChanges        *prometheus.CounterVec
	AuthFailures         *prometheus.CounterVec
	EmailFailures        *prometheus.CounterVec
	RateLimitCheckErrors *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec

	ReaperDeleted  *prometheus.CounterVec
	ReaperFailures *prometheus.CounterVec
	AuditDropped   prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// outside tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_users_created_total",
			Help: "Users created, by source (registration or oauth)",
		}, []string{"source"}),
		CodesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_codes_issued_total",
			Help: "One-time codes issued, by purpose",
		}, []string{"purpose"}),
		CodeVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_code_verifications_total",
			Help: "One-time code submissions, by purpose and result",
		}, []string{"purpose", "result"}),
		SessionsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_sessions_issued_total",
			Help: "Access tokens issued, by login method",
		}, []string{"method"}),
		OAuthResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_oauth_resolutions_total",
			Help: "OAuth assertions resolved, by provider and outcome",
		}, []string{"provider", "outcome"}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_user_status_changes_total",
			Help: "Admin activations and deactivations",
		}, []string{"action"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_auth_failures_total",
			Help: "Failed lifecycle operations, by operation and error code",
		}, []string{"operation", "code"}),
		EmailFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_email_failures_total",
			Help: "Notification emails that could not be delivered",
		}, []string{"kind"}),
		RateLimitCheckErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_ratelimit_check_errors_total",
			Help: "Rate limit checks that failed and were allowed through",
		}, []string{"class"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		ReaperDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_reaper_deleted_total",
			Help: "Records removed by the expiry reaper, by task",
		}, []string{"task"}),
		ReaperFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_reaper_failures_total",
			Help: "Reaper task runs that failed",
		}, []string{"task"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_audit_events_dropped_total",
			Help: "Audit events lost to a full buffer or a failing sink",
		}),
	}
}

func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAuthFailure(operation, code string) {
	m.AuthFailures.WithLabelValues(operation, code).Inc()
}

// EmailFailed satisfies email.FailureCounter.
func (m *Metrics) EmailFailed(kind string) {
	m.EmailFailures.WithLabelValues(kind).Inc()
}

// RateLimitCheckFailed satisfies the limiter's fail-open hook.
func (m *Metrics) RateLimitCheckFailed(class string) {
	m.RateLimitCheckErrors.WithLabelValues(class).Inc()
}
