// Package cache holds Redis-backed state shared between server instances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairprep/backend/internal/room"
)

const defaultClaimTTL = 24 * time.Hour

// releaseScript deletes the claim only when this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RoomClaims reserves room codes across instances. It implements room.CodeClaimer.
type RoomClaims struct {
	client   *redis.Client
	instance string
	ttl      time.Duration
}

// NewRoomClaims creates a claim set owned by instance. ttl <= 0 uses 24h.
func NewRoomClaims(client *redis.Client, instance string, ttl time.Duration) *RoomClaims {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RoomClaims{client: client, instance: instance, ttl: ttl}
}

func claimKey(code string) string {
	return fmt.Sprintf("interview:room:%s", code)
}

// Claim reserves code for this instance. It returns false when another claim exists.
func (c *RoomClaims) Claim(ctx context.Context, code string) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKey(code), c.instance, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", code, err)
	}
	return ok, nil
}

// Release drops this instance's claim on code.
func (c *RoomClaims) Release(ctx context.Context, code string) error {
	if err := releaseScript.Run(ctx, c.client, []string{claimKey(code)}, c.instance).Err(); err != nil {
		return fmt.Errorf("release %s: %w", code, err)
	}
	return nil
}

// Owner returns the instance that holds code, or "" when unclaimed.
func (c *RoomClaims) Owner(ctx context.Context, code string) (string, error) {
	owner, err := c.client.Get(ctx, claimKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("owner %s: %w", code, err)
	}
	return owner, nil
}

// Touch extends the claim while the room is still live.
func (c *RoomClaims) Touch(ctx context.Context, code string) error {
	return c.client.Expire(ctx, claimKey(code), c.ttl).Err()
}

// HandleLifecycle keeps a claim alive while people keep joining the room, so long
// sessions outlive the initial TTL.
func (c *RoomClaims) HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error {
	if ev.Kind != room.LifecycleJoined {
		return nil
	}
	return c.Touch(ctx, ev.Code)
}
