package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"review-auth/internal/bucketing"
	"review-auth/internal/models"
	"review-auth/internal/util"
)

const (
	revokedTokenPrefix    = "revoked_token:"
	revocationIndexPrefix = "revoked_token_index:"
)

// RevocationStore keeps revoked token ids in Redis. Entry keys carry no TTL
// on purpose: the validation path checks presence and nothing else, and only
// the scheduled sweep removes entries. A murmur3-bucketed sorted set scored
// by expiration epoch lets the sweep find expired entries without scanning.
type RevocationStore struct {
	client  *redis.Client
	buckets *bucketing.Manager
}

func NewRevocationStore(client *redis.Client, buckets *bucketing.Manager) *RevocationStore {
	return &RevocationStore{client: client, buckets: buckets}
}

// Revoke inserts (or replaces) a revocation entry. Idempotent: re-revoking
// the same token rewrites identical content.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time, username string) error {
	entry := models.RevokedToken{
		TokenID:        tokenID,
		ExpirationDate: expiresAt,
		CreatedAt:      time.Now().UTC(),
		Username:       username,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal revocation entry: %w", err)
	}

	indexKey := s.indexKey(tokenID)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, revokedTokenPrefix+tokenID, payload, 0)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: tokenID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to revoke token",
			zap.String("token_id", tokenID),
			zap.String("username", username),
			zap.Error(err))
		return fmt.Errorf("failed to store revocation: %w", err)
	}

	util.Debug("Revocation entry stored",
		zap.String("token_id", tokenID),
		zap.String("username", username))
	return nil
}

// IsRevoked is a single existence check, consistent with the latest Revoke.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// SweepExpired removes every entry whose expiration date is before now and
// returns how many were deleted.
func (s *RevocationStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := strconv.FormatInt(now.Unix(), 10)
	removed := 0

	for b := 0; b < s.buckets.RevocationBuckets(); b++ {
		indexKey := revocationIndexPrefix + strconv.Itoa(b)

		expired, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + cutoff,
		}).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan revocation index %d: %w", b, err)
		}
		if len(expired) == 0 {
			continue
		}

		pipe := s.client.Pipeline()
		for _, tokenID := range expired {
			pipe.Del(ctx, revokedTokenPrefix+tokenID)
		}
		pipe.ZRem(ctx, indexKey, toMembers(expired)...)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("failed to delete expired revocations: %w", err)
		}
		removed += len(expired)
	}

	return removed, nil
}

func (s *RevocationStore) indexKey(tokenID string) string {
	return revocationIndexPrefix + strconv.Itoa(s.buckets.RevocationBucket(tokenID))
}

func toMembers(ids []string) []interface{} {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
