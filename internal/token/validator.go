package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"review-auth/internal/util"
)

// RevocationStore is the durable set of revoked token ids. IsRevoked must be
// strongly consistent with the most recent Revoke from the same process.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time, username string) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Validator is the single authority for whether a bearer token is currently
// usable. It composes the codec with the revocation store.
type Validator struct {
	codec *Codec
	store RevocationStore

	now func() time.Time
}

func NewValidator(codec *Codec, store RevocationStore) *Validator {
	return &Validator{
		codec: codec,
		store: store,
		now:   time.Now,
	}
}

// Validate reports whether tokenStr is currently usable for the expected
// identity. The only error it returns is a revocation-store failure; every
// token-shaped problem (bad signature, wrong subject, expiry, revocation)
// simply yields false.
func (v *Validator) Validate(ctx context.Context, tokenStr, expectedUsername string) (bool, error) {
	claims, err := v.codec.Parse(tokenStr)
	if err != nil {
		return false, nil
	}
	if claims.Subject != expectedUsername {
		return false, nil
	}
	if claims.ExpiresAt == nil || v.now().After(claims.ExpiresAt.Time) {
		return false, nil
	}

	revoked, err := v.store.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return false, fmt.Errorf("revocation check failed: %w", err)
	}
	return !revoked, nil
}

// Invalidate puts the token on the revocation list. An already-expired token
// is a successful no-op (the goal state is reached either way); a malformed
// or badly signed token fails with ErrInvalidToken so the caller can answer
// with a client error.
func (v *Validator) Invalidate(ctx context.Context, tokenStr string) error {
	claims, err := v.codec.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil
		}
		return err
	}

	if claims.ExpiresAt != nil && v.now().After(claims.ExpiresAt.Time) {
		util.Debug("Skipping revocation of expired token",
			zap.String("username", claims.Subject))
		return nil
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := v.store.Revoke(ctx, claims.TokenID, expiresAt, claims.Subject); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	util.Info("Token revoked",
		zap.String("token_id", claims.TokenID),
		zap.String("username", claims.Subject))
	return nil
}

// IsAdmin reads the isAdmin claim without re-checking revocation. Callers
// must have established validity upstream (the bearer middleware does).
func (v *Validator) IsAdmin(tokenStr string) (bool, error) {
	claims, err := v.codec.Parse(tokenStr)
	if err != nil {
		return false, err
	}
	return claims.IsAdmin, nil
}
