package filter

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"review-auth/internal/models"
	"review-auth/internal/repository/scylla"
	"review-auth/internal/session"
	"review-auth/internal/token"
	"review-auth/internal/util"
)

// BannedInspector enforces account bans on every request that carries an
// identity, interactive or bearer. The ban flag is looked up live (never
// from the session snapshot), so a ban applied mid-session takes effect on
// the very next request.
type BannedInspector struct {
	sessions *session.Manager
	users    scylla.UserRepository
	codec    *token.Codec
}

func NewBannedInspector(sessions *session.Manager, users scylla.UserRepository, codec *token.Codec) *BannedInspector {
	return &BannedInspector{
		sessions: sessions,
		users:    users,
		codec:    codec,
	}
}

func (i *BannedInspector) Name() string { return "banned_account" }

func (i *BannedInspector) Inspect(r *http.Request) Decision {
	username, sessionID := i.resolveIdentity(r)
	if username == "" {
		return Allowed()
	}

	banned, err := i.users.IsBanned(r.Context(), username)
	if err != nil {
		util.Error("Ban lookup failed",
			zap.String("username", username),
			zap.Error(err))
		return Decision{
			Status: http.StatusInternalServerError,
			Reason: "internal error",
		}
	}
	if !banned {
		return Allowed()
	}

	util.Warn("Banned account attempted access",
		zap.String("username", username),
		zap.String("session_id", sessionID),
		zap.String("path", r.URL.Path))

	return Decision{
		Status:         http.StatusUnauthorized,
		Redirect:       "/login?error=banned",
		Reason:         "account banned",
		DestroySession: sessionID,
		EventType:      models.EventBannedAccess,
		EventUser:      username,
	}
}

// resolveIdentity finds who the request claims to be: the session snapshot
// for interactive traffic, otherwise the bearer token's subject. Signature
// validity of the bearer token is the bearer middleware's job; here a
// readable subject is enough to enforce a ban against it.
func (i *BannedInspector) resolveIdentity(r *http.Request) (username, sessionID string) {
	sid, snap, err := i.sessions.Load(r.Context(), r)
	if err == nil && snap != nil {
		return snap.User.Username, sid
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if claims, err := i.codec.Parse(strings.TrimPrefix(auth, "Bearer ")); err == nil {
			return claims.Subject, ""
		}
	}
	return "", ""
}
