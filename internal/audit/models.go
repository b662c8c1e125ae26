package audit

import "time"

// Action names a lifecycle transition.
type Action string

const (
	ActionUserRegistered  Action = "user_registered"
	ActionEmailVerified   Action = "email_verified"
	ActionLoginCodeIssued Action = "login_code_issued"
	ActionLoginSucceeded  Action = "login_succeeded"
	ActionOAuthResolved   Action = "oauth_resolved"
	ActionUserActivated   Action = "user_activated"
	ActionUserDeactivated Action = "user_deactivated"
	ActionAuthFailed      Action = "auth_failed"
	ActionReaperRun       Action = "reaper_run"
)

// Event is a transport-agnostic record of one lifecycle action. Client IPs
// are stored anonymized and emails never appear unmasked.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    Action            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	ActorID   string            `json:"actor_id,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Device    string            `json:"device,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}
