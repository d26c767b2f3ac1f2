package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"review-auth/internal/models"
	"review-auth/internal/util"
)

var (
	// ErrUserNotFound marks a missing account row.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists marks a lost LWT insert race.
	ErrUserAlreadyExists = errors.New("user already exists")
)

type userRepository struct {
	client *ScyllaClient
}

func NewUserRepository(client *ScyllaClient) UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now

	applied, err := r.client.Prepared.CreateUser.WithContext(ctx).Bind(
		user.Username, user.Email, user.PasswordHash, user.IsAdmin, user.IsBanned,
		user.PotentiallyDangerous, user.BannedReason, user.BannedAt, user.CreatedAt, user.LastLogin,
	).MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to create user",
			zap.String("username", user.Username),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !applied {
		return fmt.Errorf("%w: %s", ErrUserAlreadyExists, user.Username)
	}

	util.Info("User created", zap.String("username", user.Username))
	return nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}

	err := r.client.Prepared.GetUserByName.WithContext(ctx).Bind(username).Scan(
		&user.Username, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.IsBanned,
		&user.PotentiallyDangerous, &user.BannedReason, &user.BannedAt, &user.CreatedAt, &user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		util.Error("Failed to get user by username",
			zap.String("username", username),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

// IsBanned is the live ban-flag lookup the banned filter depends on.
func (r *userRepository) IsBanned(ctx context.Context, username string) (bool, error) {
	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsBanned, nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	if err := r.client.Prepared.UpdateLastLogin.WithContext(ctx).Bind(at, username).Exec(); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *userRepository) Ban(ctx context.Context, username, reason string) error {
	now := time.Now().UTC()
	if err := r.client.Prepared.BanUser.WithContext(ctx).Bind(reason, now, username).Exec(); err != nil {
		util.Error("Failed to ban user", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("failed to ban user: %w", err)
	}
	util.Warn("User banned",
		zap.String("username", username),
		zap.String("reason", reason))
	return nil
}

func (r *userRepository) Unban(ctx context.Context, username string) error {
	if err := r.client.Prepared.UnbanUser.WithContext(ctx).Bind(username).Exec(); err != nil {
		util.Error("Failed to unban user", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("failed to unban user: %w", err)
	}
	util.Info("User unbanned", zap.String("username", username))
	return nil
}
