package lockguard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "settlement:lock:"

// releaseScript deletes the lease only if this process still owns it, so a
// reclaimed lock is never released out from under its new holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisGuard is a lease-based guard usable across processes. The lease TTL
// doubles as the stale-lock timeout: an abandoned lock simply expires and
// the next Acquire succeeds.
type RedisGuard struct {
	client  *redis.Client
	timeout time.Duration
	owner   string
}

// NewRedisGuard creates a guard backed by the given Redis client. owner
// should be unique per process instance.
func NewRedisGuard(client *redis.Client, timeout time.Duration, owner string) *RedisGuard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if owner == "" {
		owner = uuid.NewString()
	}
	return &RedisGuard{client: client, timeout: timeout, owner: owner}
}

// Acquire takes the lease with SET NX PX. Expiry handles stale reclaim.
func (g *RedisGuard) Acquire(ctx context.Context, accountID uuid.UUID) (bool, error) {
	ok, err := g.client.SetNX(ctx, lockKeyPrefix+accountID.String(), g.owner, g.timeout).Result()
	if err != nil {
		return false, fmt.Errorf("acquire settlement lock: %w", err)
	}
	return ok, nil
}

// Release drops the lease if this instance still owns it
func (g *RedisGuard) Release(ctx context.Context, accountID uuid.UUID) error {
	if err := releaseScript.Run(ctx, g.client, []string{lockKeyPrefix + accountID.String()}, g.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release settlement lock: %w", err)
	}
	return nil
}
