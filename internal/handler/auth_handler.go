package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"review-auth/internal/audit"
	"review-auth/internal/models"
	"review-auth/internal/service"
	"review-auth/internal/session"
	"review-auth/internal/token"
	"review-auth/internal/util"
)

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type claimsContextKey struct{}

// ClaimsFromContext returns the bearer claims installed by RequireBearer.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// AuthHandler serves both auth surfaces: the JSON API (bearer tokens) and
// the interactive form flow (server-side sessions).
type AuthHandler struct {
	auth      *service.AuthService
	codec     *token.Codec
	validator *token.Validator
	sessions  *session.Manager
	recorder  *audit.Recorder
}

func NewAuthHandler(auth *service.AuthService, codec *token.Codec, validator *token.Validator,
	sessions *session.Manager, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		codec:     codec,
		validator: validator,
		sessions:  sessions,
		recorder:  recorder,
	}
}

// RegisterRoutes mounts the API routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.APILogin)
		r.Post("/register", h.APIRegister)
		r.Post("/logout", h.APILogout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireBearer)
			r.Get("/me", h.Me)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(h.RequireBearer)
		r.Use(h.RequireAdmin)
		r.Post("/{username}/ban", h.BanUser)
		r.Post("/{username}/unban", h.UnbanUser)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APILogin authenticates credentials and answers with a bearer token.
func (h *AuthHandler) APILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Login(r.Context(), req.Username, req.Password,
		session.ClientIP(r), r.UserAgent())
	if err != nil {
		status, msg := loginFailureStatus(err)
		writeError(w, status, msg)
		return
	}

	tok, err := h.codec.Issue(user.Username, user.IsAdmin, user.Roles())
	if err != nil {
		util.Error("Failed to issue token",
			zap.String("username", user.Username),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"token": tok,
			"user":  user,
		},
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) APIRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusConflict, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    user,
		Message: "user registered",
	})
}

// APILogout revokes the presented bearer token. An already-expired token
// still logs out successfully; a malformed one is a client error.
func (h *AuthHandler) APILogout(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "token not provided or invalid format")
		return
	}

	if err := h.validator.Invalidate(r.Context(), tok); err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "invalid token")
			return
		}
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}

	if h.recorder != nil {
		if claims, err := h.codec.Parse(tok); err == nil {
			h.recorder.Record(models.SecurityEvent{
				EventType: models.EventTokenRevoked,
				Username:  claims.Subject,
				IPAddress: session.ClientIP(r),
				UserAgent: r.UserAgent(),
			})
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "logout successful, token invalidated",
	})
}

// Me returns the fresh profile for the validated bearer identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.FindUser(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: user})
}

type banRequest struct {
	Reason string `json:"reason"`
}

func (h *AuthHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !util.IsValidUsername(username) {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	var req banRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.auth.Ban(r.Context(), username, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ban user")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "user banned"})
}

func (h *AuthHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !util.IsValidUsername(username) {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	if err := h.auth.Unban(r.Context(), username); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unban user")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "user unbanned"})
}

// InteractiveLogin handles the form POST: verify credentials, run the
// session bridge, redirect to the application root.
func (h *AuthHandler) InteractiveLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=true", http.StatusFound)
		return
	}

	user, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"),
		session.ClientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrUserBanned) {
			http.Redirect(w, r, "/login?error=banned", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login?error=true", http.StatusFound)
		return
	}

	// Re-load the profile for the snapshot. Authentication without a
	// loadable profile is an inconsistent state and fails the login.
	profile, err := h.auth.FindUser(r.Context(), user.Username)
	if err != nil {
		util.Error("Profile load failed after successful authentication",
			zap.String("username", user.Username),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if _, err := h.sessions.Establish(r.Context(), w, r, profile); err != nil {
		util.Error("Session establishment failed",
			zap.String("username", user.Username),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// InteractiveLogout destroys the current session.
func (h *AuthHandler) InteractiveLogout(w http.ResponseWriter, r *http.Request) {
	sid, snap, err := h.sessions.Load(r.Context(), r)
	if err == nil && snap != nil {
		h.sessions.Destroy(r.Context(), w, sid)
		if h.recorder != nil {
			h.recorder.Record(models.SecurityEvent{
				EventType: models.EventLogout,
				Username:  snap.User.Username,
				SessionID: sid,
				IPAddress: session.ClientIP(r),
				UserAgent: r.UserAgent(),
			})
		}
	}
	http.Redirect(w, r, "/login?logout=true", http.StatusFound)
}

// RequireBearer validates the Authorization header against the token
// validator (signature, subject, expiry, revocation) and installs the
// claims into the request context.
func (h *AuthHandler) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := h.codec.Parse(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		valid, err := h.validator.Validate(r.Context(), tok, claims.Subject)
		if err != nil {
			util.Error("Token validation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !valid {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates moderation routes on the isAdmin claim. Revocation was
// already checked by RequireBearer upstream.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func loginFailureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid username format"
	case errors.Is(err, service.ErrUserBanned):
		return http.StatusUnauthorized, "account banned"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "authentication failed"
	default:
		return http.StatusInternalServerError, "authentication failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}
