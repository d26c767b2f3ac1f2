package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-auth/internal/bucketing"
	"review-auth/internal/config"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestBuckets() *bucketing.Manager {
	return bucketing.NewManager(&config.Config{
		Bucketing: config.BucketingConfig{RevocationBuckets: 4, EventBuckets: 4},
	})
}

func TestRevokeThenIsRevoked(t *testing.T) {
	store := NewRevocationStore(newTestRedis(t), newTestBuckets())
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "tok-1", time.Now().Add(time.Hour), "alice"))

	revoked, err = store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := NewRevocationStore(newTestRedis(t), newTestBuckets())
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.Revoke(ctx, "tok-1", exp, "alice"))
	require.NoError(t, store.Revoke(ctx, "tok-1", exp, "alice"))

	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevocationEntriesCarryNoTTL(t *testing.T) {
	client := newTestRedis(t)
	store := NewRevocationStore(client, newTestBuckets())
	ctx := context.Background()

	// An entry expiring in one second must still be present afterwards:
	// only the sweep removes entries, never Redis expiry.
	require.NoError(t, store.Revoke(ctx, "tok-1", time.Now().Add(time.Second), "alice"))

	ttl, err := client.TTL(ctx, "revoked_token:tok-1").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestSweepExpiredRemovesOnlyPastEntries(t *testing.T) {
	store := NewRevocationStore(newTestRedis(t), newTestBuckets())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Revoke(ctx, "expired-1", now.Add(-time.Hour), "alice"))
	require.NoError(t, store.Revoke(ctx, "expired-2", now.Add(-time.Minute), "bob"))
	require.NoError(t, store.Revoke(ctx, "live-1", now.Add(time.Hour), "carol"))

	removed, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for id, want := range map[string]bool{
		"expired-1": false,
		"expired-2": false,
		"live-1":    true,
	} {
		revoked, err := store.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, revoked, id)
	}

	// Second sweep finds nothing left.
	removed, err = store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweepKeepsEntryExpiringExactlyNow(t *testing.T) {
	store := NewRevocationStore(newTestRedis(t), newTestBuckets())
	ctx := context.Background()
	now := time.Unix(1790000000, 0)

	require.NoError(t, store.Revoke(ctx, "boundary", now, "alice"))

	// The cutoff is exclusive: an entry expiring at the sweep instant
	// survives until the next pass.
	removed, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.SweepExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestSweepCleansIndexAcrossBuckets(t *testing.T) {
	client := newTestRedis(t)
	buckets := newTestBuckets()
	store := NewRevocationStore(client, buckets)
	ctx := context.Background()
	now := time.Now()

	// Enough ids to land in more than one shard.
	for i := 0; i < 20; i++ {
		id := "tok-" + strconv.Itoa(i)
		require.NoError(t, store.Revoke(ctx, id, now.Add(-time.Minute), "alice"))
	}

	removed, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 20, removed)

	for b := 0; b < buckets.RevocationBuckets(); b++ {
		n, err := client.ZCard(ctx, "revoked_token_index:"+strconv.Itoa(b)).Result()
		require.NoError(t, err)
		assert.Zero(t, n, "index bucket %d should be empty", b)
	}
}
