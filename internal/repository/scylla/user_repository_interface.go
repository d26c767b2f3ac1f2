package scylla

import (
	"context"
	"time"

	"review-auth/internal/models"
)

// UserRepository is the identity collaborator consumed by the auth service
// and the banned filter. Fakes implement it in tests.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	IsBanned(ctx context.Context, username string) (bool, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	Ban(ctx context.Context, username, reason string) error
	Unban(ctx context.Context, username string) error
}
