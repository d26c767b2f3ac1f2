package models

import "time"

// Security event types emitted by the defense filters and auth flows.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventLogout            = "logout"
	EventTokenRevoked      = "token_revoked"
	EventBannedAccess      = "banned_account_access"
	EventSessionHijack     = "session_hijack_suspected"
	EventPathTraversal     = "path_traversal_attempt"
	EventInjectionAttempt  = "injection_attempt"
	EventUserBanned        = "user_banned"
	EventUserUnbanned      = "user_unbanned"
)

// SecurityEvent is the audit record fanned out to Kafka, ClickHouse and
// Elasticsearch by the audit recorder.
type SecurityEvent struct {
	EventBucket int       `db:"event_bucket" json:"event_bucket"`
	EventTime   time.Time `db:"event_time" json:"event_time"`
	EventDate   string    `db:"event_date" json:"event_date"`
	EventType   string    `db:"event_type" json:"event_type"`
	Username    string    `db:"username" json:"username,omitempty"`
	SessionID   string    `db:"session_id" json:"session_id,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent   string    `db:"user_agent" json:"user_agent,omitempty"`
	Path        string    `db:"path" json:"path,omitempty"`
	Details     string    `db:"details" json:"details,omitempty"`
}
