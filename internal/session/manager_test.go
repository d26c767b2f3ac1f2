package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-auth/internal/models"
	redisrepo "review-auth/internal/repository/redis"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(redisrepo.NewSessionStore(client), "REVIEW_SESSION", time.Hour, false)
}

func loginRequest(ua, remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.Header.Set("User-Agent", ua)
	r.RemoteAddr = remoteAddr
	return r
}

func TestEstablishCapturesOriginPair(t *testing.T) {
	m := newTestManager(t)
	w := httptest.NewRecorder()
	r := loginRequest("Mozilla/5.0", "192.0.2.10:55000")

	sid, err := m.Establish(context.Background(), w, r, &models.User{Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	// Cookie set with the session id.
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "REVIEW_SESSION", cookies[0].Name)
	assert.Equal(t, sid, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// Snapshot holds the identity plus user-agent and port-stripped IP.
	follow := httptest.NewRequest(http.MethodGet, "/", nil)
	follow.AddCookie(cookies[0])
	gotSID, snap, err := m.Load(context.Background(), follow)
	require.NoError(t, err)
	assert.Equal(t, sid, gotSID)
	require.NotNil(t, snap)
	assert.Equal(t, "alice", snap.User.Username)
	assert.Equal(t, "Mozilla/5.0", snap.UserAgent)
	assert.Equal(t, "192.0.2.10", snap.IPAddress)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestLoadWithoutCookie(t *testing.T) {
	m := newTestManager(t)

	sid, snap, err := m.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, sid)
	assert.Nil(t, snap)
}

func TestLoadWithStaleCookie(t *testing.T) {
	m := newTestManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "REVIEW_SESSION", Value: "long-gone"})

	sid, snap, err := m.Load(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, sid)
	assert.Nil(t, snap)
}

func TestDestroyRemovesSnapshotAndExpiresCookie(t *testing.T) {
	m := newTestManager(t)
	w := httptest.NewRecorder()
	r := loginRequest("Mozilla/5.0", "192.0.2.10:55000")

	sid, err := m.Establish(context.Background(), w, r, &models.User{Username: "alice"})
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	m.Destroy(context.Background(), w2, sid)

	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	follow := httptest.NewRequest(http.MethodGet, "/", nil)
	follow.AddCookie(&http.Cookie{Name: "REVIEW_SESSION", Value: sid})
	_, snap, err := m.Load(context.Background(), follow)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestEachLoginGetsFreshSessionID(t *testing.T) {
	m := newTestManager(t)

	sid1, err := m.Establish(context.Background(), httptest.NewRecorder(),
		loginRequest("ua", "192.0.2.10:1"), &models.User{Username: "alice"})
	require.NoError(t, err)
	sid2, err := m.Establish(context.Background(), httptest.NewRecorder(),
		loginRequest("ua", "192.0.2.10:1"), &models.User{Username: "alice"})
	require.NoError(t, err)

	assert.NotEqual(t, sid1, sid2)
}

func TestClientIPStripsPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:61000"
	assert.Equal(t, "203.0.113.9", ClientIP(r))

	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(r))

	// Already bare (no port).
	r.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}
