package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"review-auth/internal/audit"
	"review-auth/internal/hashing"
	"review-auth/internal/models"
	"review-auth/internal/repository/scylla"
	"review-auth/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserBanned         = errors.New("user is banned")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// AuthService owns interactive and API credential checks plus the account
// moderation operations (ban/unban) that feed the defense filters.
type AuthService struct {
	users    scylla.UserRepository
	hasher   *hashing.Hasher
	recorder *audit.Recorder
}

func NewAuthService(users scylla.UserRepository, hasher *hashing.Hasher, recorder *audit.Recorder) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		recorder: recorder,
	}
}

// Login authenticates a username/password pair. Banned accounts fail even
// with correct credentials.
func (s *AuthService) Login(ctx context.Context, username, password, ip, userAgent string) (*models.User, error) {
	if !util.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: bad username format", ErrInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, scylla.ErrUserNotFound) {
			s.record(models.SecurityEvent{
				EventType: models.EventLoginFailure,
				Username:  username,
				IPAddress: ip,
				UserAgent: userAgent,
				Details:   "unknown user",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.record(models.SecurityEvent{
			EventType: models.EventLoginFailure,
			Username:  username,
			IPAddress: ip,
			UserAgent: userAgent,
			Details:   "bad password",
		})
		return nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		s.record(models.SecurityEvent{
			EventType: models.EventBannedAccess,
			Username:  username,
			IPAddress: ip,
			UserAgent: userAgent,
			Details:   "login attempt while banned",
		})
		return nil, ErrUserBanned
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, username, now); err != nil {
		// Login still succeeds; the stamp is best effort.
		util.Warn("Failed to stamp last login",
			zap.String("username", username),
			zap.Error(err))
	}
	user.LastLogin = &now

	s.record(models.SecurityEvent{
		EventType: models.EventLoginSuccess,
		Username:  username,
		IPAddress: ip,
		UserAgent: userAgent,
	})
	return user, nil
}

// Register creates an account after validating the inputs against the same
// patterns the login path enforces.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if !util.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: bad username format", ErrInvalidInput)
	}
	if !util.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: bad email format", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password too short", ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, scylla.ErrUserAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

// Ban flips the live ban flag; the banned filter picks it up on the
// account's very next request. The reason is moderator-supplied text and is
// sanitized before it is stored and surfaced in admin views.
func (s *AuthService) Ban(ctx context.Context, username, reason string) error {
	reason = util.SanitizeInput(reason)
	if err := s.users.Ban(ctx, username, reason); err != nil {
		return err
	}
	s.record(models.SecurityEvent{
		EventType: models.EventUserBanned,
		Username:  username,
		Details:   reason,
	})
	return nil
}

func (s *AuthService) Unban(ctx context.Context, username string) error {
	if err := s.users.Unban(ctx, username); err != nil {
		return err
	}
	s.record(models.SecurityEvent{
		EventType: models.EventUserUnbanned,
		Username:  username,
	})
	return nil
}

// FindUser re-loads a profile; the session bridge treats a miss as fatal
// for the login attempt.
func (s *AuthService) FindUser(ctx context.Context, username string) (*models.User, error) {
	return s.users.FindByUsername(ctx, username)
}

func (s *AuthService) record(ev models.SecurityEvent) {
	if s.recorder != nil {
		s.recorder.Record(ev)
	}
}
