package filter

import (
	"net/http"

	"go.uber.org/zap"

	"review-auth/internal/models"
	"review-auth/internal/session"
	"review-auth/internal/util"
)

// HijackInspector compares every request's user-agent and remote address
// against the origin pair captured at login. Any mismatch is treated as a
// stolen session id: the session dies immediately, before any
// state-mutating handler can run.
type HijackInspector struct {
	sessions *session.Manager
}

func NewHijackInspector(sessions *session.Manager) *HijackInspector {
	return &HijackInspector{sessions: sessions}
}

func (i *HijackInspector) Name() string { return "session_hijack" }

func (i *HijackInspector) Inspect(r *http.Request) Decision {
	sessionID, snap, err := i.sessions.Load(r.Context(), r)
	if err != nil {
		util.Error("Session load failed during hijack check", zap.Error(err))
		return Decision{
			Status: http.StatusInternalServerError,
			Reason: "internal error",
		}
	}
	// No session, or a session established before the bridge recorded an
	// origin: nothing to compare yet.
	if snap == nil || snap.UserAgent == "" {
		return Allowed()
	}

	currentUA := r.UserAgent()
	currentIP := session.ClientIP(r)
	if snap.UserAgent == currentUA && snap.IPAddress == currentIP {
		return Allowed()
	}

	util.Warn("Possible session hijacking attempt detected",
		zap.String("session_id", sessionID),
		zap.String("original_user_agent", snap.UserAgent),
		zap.String("current_user_agent", currentUA),
		zap.String("original_ip", snap.IPAddress),
		zap.String("current_ip", currentIP),
		zap.String("path", r.URL.Path))

	return Decision{
		Status:         http.StatusUnauthorized,
		Redirect:       "/login?hijacked=true",
		Reason:         "session mismatch",
		DestroySession: sessionID,
		EventType:      models.EventSessionHijack,
		EventUser:      snap.User.Username,
		EventDetails:   "ua/ip mismatch against login origin",
	}
}
