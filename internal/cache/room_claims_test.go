package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairprep/backend/internal/room"
)

func TestClaimKey(t *testing.T) {
	assert.Equal(t, "interview:room:AB12CD", claimKey("AB12CD"))
}

func TestNewRoomClaimsDefaultsTTL(t *testing.T) {
	c := NewRoomClaims(nil, "i-1", 0)
	assert.Equal(t, defaultClaimTTL, c.ttl)
}

func TestHandleLifecycleOnlyRefreshesOnJoin(t *testing.T) {
	c := NewRoomClaims(nil, "i-1", 0)
	for _, kind := range []room.LifecycleKind{room.LifecycleCreated, room.LifecycleLeft, room.LifecycleClosed} {
		assert.NoError(t, c.HandleLifecycle(context.Background(), room.LifecycleEvent{Kind: kind, Code: "AB12CD"}))
	}
}

// Runs against a real Redis when REDIS_TEST_ADDR is set.
func TestRoomClaimsAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	code := "T" + uuid.NewString()[:7]
	a := NewRoomClaims(client, "instance-a", time.Minute)
	b := NewRoomClaims(client, "instance-b", time.Minute)
	t.Cleanup(func() { _ = client.Del(context.Background(), claimKey(code)).Err() })

	ok, err := a.Claim(ctx, code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Claim(ctx, code)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := b.Owner(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "instance-a", owner)

	require.NoError(t, client.Expire(ctx, claimKey(code), 5*time.Second).Err())
	require.NoError(t, a.HandleLifecycle(ctx, room.LifecycleEvent{Kind: room.LifecycleJoined, Code: code}))
	ttl, err := client.TTL(ctx, claimKey(code)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)

	require.NoError(t, b.Release(ctx, code))
	owner, err = a.Owner(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "instance-a", owner, "only the owner can release")

	require.NoError(t, a.Release(ctx, code))
	owner, err = a.Owner(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, owner)
}
