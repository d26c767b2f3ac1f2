package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-auth/internal/bucketing"
	"review-auth/internal/config"
	"review-auth/internal/filter"
	"review-auth/internal/hashing"
	"review-auth/internal/models"
	redisrepo "review-auth/internal/repository/redis"
	"review-auth/internal/repository/scylla"
	"review-auth/internal/service"
	"review-auth/internal/session"
	"review-auth/internal/token"
)

// memoryUserRepo backs the handler tests without a live Scylla.
type memoryUserRepo struct {
	users map[string]*models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*models.User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *models.User) error {
	if _, ok := r.users[user.Username]; ok {
		return scylla.ErrUserAlreadyExists
	}
	cp := *user
	r.users[user.Username] = &cp
	return nil
}

func (r *memoryUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, scylla.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepo) IsBanned(ctx context.Context, username string) (bool, error) {
	u, ok := r.users[username]
	if !ok {
		return false, nil
	}
	return u.IsBanned, nil
}

func (r *memoryUserRepo) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	return nil
}

func (r *memoryUserRepo) Ban(ctx context.Context, username, reason string) error {
	if u, ok := r.users[username]; ok {
		u.IsBanned = true
		u.BannedReason = reason
	}
	return nil
}

func (r *memoryUserRepo) Unban(ctx context.Context, username string) error {
	if u, ok := r.users[username]; ok {
		u.IsBanned = false
	}
	return nil
}

type testEnv struct {
	router http.Handler
	users  *memoryUserRepo
	svc    *service.AuthService
	codec  *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		Environment: "development",
		Security:    config.SecurityConfig{InjectionFilterEnabled: true},
		Bucketing:   config.BucketingConfig{RevocationBuckets: 4, EventBuckets: 4},
	}

	buckets := bucketing.NewManager(cfg)
	codec, err := token.NewCodec(map[string][]byte{
		"k1": []byte("0123456789abcdef0123456789abcdef"),
	}, "k1", time.Hour)
	require.NoError(t, err)

	validator := token.NewValidator(codec, redisrepo.NewRevocationStore(client, buckets))
	sessions := session.NewManager(redisrepo.NewSessionStore(client), "REVIEW_SESSION", time.Hour, false)

	users := newMemoryUserRepo()
	hasher := hashing.NewHasher(hashing.Params{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	svc := service.NewAuthService(users, hasher, nil)

	chain := filter.NewChain(sessions, nil,
		filter.NewPathTraversalInspector(),
		filter.NewBannedInspector(sessions, users, codec),
		filter.NewHijackInspector(sessions),
		filter.NewInjectionInspector(),
	)

	h := NewAuthHandler(svc, codec, validator, sessions, nil)
	router := NewRouter(cfg, chain, h, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &testEnv{router: router, users: users, svc: svc, codec: codec}
}

func (e *testEnv) register(t *testing.T, username, password string, admin bool) {
	t.Helper()
	_, err := e.svc.Register(context.Background(), username, username+"@example.com", password)
	require.NoError(t, err)
	if admin {
		e.users.users[username].IsAdmin = true
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) apiLogin(t *testing.T, username, password string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		return "", rec
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token, rec
}

func bearerRequest(method, target, tok string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestAPILoginIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)

	tok, _ := env.apiLogin(t, "alice", "hunter2hunter2")

	rec := env.do(bearerRequest(http.MethodGet, "/api/auth/me", tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alice"`)
}

func TestAPILoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)

	_, rec := env.apiLogin(t, "alice", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)
	tok, _ := env.apiLogin(t, "alice", "hunter2hunter2")

	rec := env.do(bearerRequest(http.MethodPost, "/api/auth/logout", tok))
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is dead for every subsequent request.
	rec = env.do(bearerRequest(http.MethodGet, "/api/auth/me", tok))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithMalformedToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(bearerRequest(http.MethodPost, "/api/auth/logout", "garbage"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminBanFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "root", "hunter2hunter2", true)
	env.register(t, "bob", "hunter2hunter2", false)

	adminTok, _ := env.apiLogin(t, "root", "hunter2hunter2")
	bobTok, _ := env.apiLogin(t, "bob", "hunter2hunter2")

	rec := env.do(bearerRequest(http.MethodPost, "/api/users/bob/ban", adminTok))
	require.Equal(t, http.StatusOK, rec.Code)

	// Bob's very next request dies at the banned filter, JSON-style.
	rec = env.do(bearerRequest(http.MethodGet, "/api/auth/me", bobTok))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "banned")

	rec = env.do(bearerRequest(http.MethodPost, "/api/users/bob/unban", adminTok))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(bearerRequest(http.MethodGet, "/api/auth/me", bobTok))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBanRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)
	env.register(t, "bob", "hunter2hunter2", false)

	tok, _ := env.apiLogin(t, "alice", "hunter2hunter2")
	rec := env.do(bearerRequest(http.MethodPost, "/api/users/bob/ban", tok))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInteractiveLoginEstablishesSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)

	form := url.Values{"username": {"alice"}, "password": {"hunter2hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.RemoteAddr = "192.0.2.10:50000"

	rec := env.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "REVIEW_SESSION", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestInteractiveLoginRedirectsBannedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mallory", "hunter2hunter2", false)
	require.NoError(t, env.users.Ban(context.Background(), "mallory", "spam"))

	form := url.Values{"username": {"mallory"}, "password": {"hunter2hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := env.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=banned", rec.Header().Get("Location"))
}

func TestHijackedSessionIsCutOff(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "hunter2hunter2", false)

	form := url.Values{"username": {"alice"}, "password": {"hunter2hunter2"}}
	login := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login.Header.Set("User-Agent", "Mozilla/5.0")
	login.RemoteAddr = "192.0.2.10:50000"
	rec := env.do(login)
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := rec.Result().Cookies()[0]

	// Same cookie, different origin: the stolen session dies.
	steal := httptest.NewRequest(http.MethodGet, "/reviews", nil)
	steal.AddCookie(cookie)
	steal.Header.Set("User-Agent", "curl/8.0")
	steal.RemoteAddr = "203.0.113.9:4000"
	rec = env.do(steal)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?hijacked=true", rec.Header().Get("Location"))

	// The session is gone even for the legitimate origin.
	legit := httptest.NewRequest(http.MethodGet, "/logout", nil)
	legit.AddCookie(cookie)
	legit.Header.Set("User-Agent", "Mozilla/5.0")
	legit.RemoteAddr = "192.0.2.10:50000"
	rec = env.do(legit)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?logout=true", rec.Header().Get("Location"))
}

func TestTraversalRequestNeverReachesHandlers(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me/../../../etc/passwd", nil)
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username":"carol","email":"carol@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate registration conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = env.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bad email is a client error.
	bad := `{"username":"dave","email":"nope","password":"hunter2hunter2"}`
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(bad))
	req.Header.Set("Content-Type", "application/json")
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
