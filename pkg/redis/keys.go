package redis

import "strings"

// keyspace prefixes every key so several environments can share one Redis.
type keyspace string

const defaultKeyspace keyspace = "bz"

func (k keyspace) join(parts ...string) string {
	out := []string{string(k)}
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}

// IdempotencyKey is bz:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.join("idempotency", scope, id)
}

// RateLimitKey is bz:rate_limit:<scope>.
func (c *Client) RateLimitKey(scope string) string {
	return c.keys.join("rate_limit", scope)
}

// LockKey is bz:lock:<name>.
func (c *Client) LockKey(name string) string {
	return c.keys.join("lock", name)
}
