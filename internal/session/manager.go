package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"review-auth/internal/models"
	redisrepo "review-auth/internal/repository/redis"
	"review-auth/internal/util"
)

// Store persists session snapshots keyed by session id.
type Store interface {
	Save(ctx context.Context, sessionID string, snap *models.SessionSnapshot, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// Manager is the session/identity bridge. Establish is the sole writer of
// the origin user-agent/IP pair; filters only ever read it.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(store Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Establish runs once per successful interactive login: it snapshots the
// authenticated identity together with the request's user-agent and remote
// address, then sets the session cookie.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.User) (string, error) {
	sessionID := uuid.New().String()
	snap := &models.SessionSnapshot{
		User:      *user,
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
		CreatedAt: time.Now().UTC(),
	}

	if err := m.store.Save(ctx, sessionID, snap, m.ttl); err != nil {
		return "", fmt.Errorf("failed to establish session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	util.Info("Session established",
		zap.String("session_id", sessionID),
		zap.String("username", user.Username),
		zap.String("ip", snap.IPAddress))
	return sessionID, nil
}

// Load returns the current session id and snapshot, or ("", nil, nil) when
// the request carries no session.
func (m *Manager) Load(ctx context.Context, r *http.Request) (string, *models.SessionSnapshot, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", nil, nil
	}

	snap, err := m.store.Load(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, redisrepo.ErrSessionNotFound) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return cookie.Value, snap, nil
}

// Destroy removes the server-side snapshot and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		util.Error("Failed to delete session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CookieName exposes the configured cookie name for handlers and tests.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// ClientIP strips the port from the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
