package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-auth/internal/models"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(newTestRedis(t))
	ctx := context.Background()

	snap := &models.SessionSnapshot{
		User:      models.User{Username: "alice", IsAdmin: true},
		UserAgent: "Mozilla/5.0",
		IPAddress: "192.0.2.10",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, "sid-1", snap, time.Hour))

	loaded, err := store.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.User.Username)
	assert.True(t, loaded.User.IsAdmin)
	assert.Equal(t, snap.UserAgent, loaded.UserAgent)
	assert.Equal(t, snap.IPAddress, loaded.IPAddress)
}

func TestSessionStoreMissingSession(t *testing.T) {
	store := NewSessionStore(newTestRedis(t))

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreDelete(t *testing.T) {
	store := NewSessionStore(newTestRedis(t))
	ctx := context.Background()

	snap := &models.SessionSnapshot{User: models.User{Username: "alice"}}
	require.NoError(t, store.Save(ctx, "sid-1", snap, time.Hour))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	_, err := store.Load(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting an absent session is not an error.
	assert.NoError(t, store.Delete(ctx, "sid-1"))
}

func TestSessionStoreHonorsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSessionStore(client)
	ctx := context.Background()

	snap := &models.SessionSnapshot{User: models.User{Username: "alice"}}
	require.NoError(t, store.Save(ctx, "sid-1", snap, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
