package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore backs the HTTP Idempotency-Key middleware and the event
// dedupe guard used by the Pub/Sub consumers.
type IdempotencyStore interface {
	IdempotencyKey(scope, id string) string
	Lookup(ctx context.Context, key string) (string, bool, error)
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// windowScript increments a counter and starts its expiry on the first hit.
// Both commands run atomically, so every window key carries a TTL.
const windowScript = `local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`

// Lookup returns the value at key. A missing key is not an error.
func (c *Client) Lookup(ctx context.Context, key string) (string, bool, error) {
	if err := c.ready(); err != nil {
		return "", false, err
	}
	v, err := c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Claim writes value only when key is absent and reports whether it did.
func (c *Client) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// Put overwrites key.
func (c *Client) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Release(ctx context.Context, key string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Del(ctx, key).Err()
}

// IncrWithTTL counts a hit inside a fixed window that starts on the first hit.
func (c *Client) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", window)
	}
	return c.cmd.Eval(ctx, windowScript, []string{key}, window.Milliseconds()).Int64()
}
