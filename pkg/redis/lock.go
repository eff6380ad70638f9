package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// unlockScript deletes the lock only while the caller still owns it.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

var (
	// ErrLockHeld is returned when another owner holds the lock.
	ErrLockHeld        = errors.New("lock is held by another owner")
	// ErrLockUnavailable wraps failures to talk to the lock store.
	ErrLockUnavailable = errors.New("lock store unavailable")
)

// Locker serializes payout requests per tenant and cron runs across replicas.
type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if name == "" || owner == "" {
		return false, errors.New("lock name and owner are required")
	}
	return c.Claim(ctx, c.LockKey(name), owner, ttl)
}

// ReleaseLock is a no-op when owner no longer holds name.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Eval(ctx, unlockScript, []string{c.LockKey(name)}, owner).Err()
}

// WithLock runs fn while holding name. fn is skipped with ErrLockHeld when
// another owner has the lock. The release survives ctx cancellation.
func WithLock(ctx context.Context, locker Locker, name, owner string, ttl time.Duration, fn func(context.Context) error) error {
	ok, err := locker.AcquireLock(ctx, name, owner, ttl)
	if err != nil {
		return fmt.Errorf("acquire %s: %w: %w", name, ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		_ = locker.ReleaseLock(context.WithoutCancel(ctx), name, owner)
	}()
	return fn(ctx)
}
