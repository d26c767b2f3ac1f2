package models

import "time"

// SessionSnapshot is what the session bridge records at interactive login:
// the full identity profile plus the originating client fingerprint. The
// origin pair is written exactly once and compared on every later request.
type SessionSnapshot struct {
	User      User      `json:"user"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}
