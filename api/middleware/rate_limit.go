package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bazaarhq/bazaar-backend/api/responses"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// RateLimitStore counts hits per key inside a fixed window.
type RateLimitStore interface {
	RateLimitKey(scope string) string
	IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitRule throttles a public auth surface. PerIP counts every request
// from one address; PerAccount counts requests naming the same email in the
// JSON body, so credential stuffing from many addresses is still capped.
// A zero limit disables that counter.
type RateLimitRule struct {
	Name       string
	Window     time.Duration
	PerIP      int
	PerAccount int
}

func (rule RateLimitRule) active() bool {
	return rule.Window > 0 && (rule.PerIP > 0 || rule.PerAccount > 0)
}

type rateCounter struct {
	dimension string
	subject   string
	limit     int
}

// RateLimit rejects requests over rule with 429 and a Retry-After header.
// Requests pass through untouched when store is nil.
func RateLimit(rule RateLimitRule, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(rule.Name))
	if name == "" {
		name = "auth"
	}
	return func(next http.Handler) http.Handler {
		if !rule.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			counters := make([]rateCounter, 0, 2)
			if rule.PerIP > 0 {
				counters = append(counters, rateCounter{dimension: "ip", subject: clientIP(r), limit: rule.PerIP})
			}
			if rule.PerAccount > 0 {
				body, err := bufferBody(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
					return
				}
				if email := accountEmail(body); email != "" {
					counters = append(counters, rateCounter{dimension: "email", subject: digest(email), limit: rule.PerAccount})
				}
			}

			for _, c := range counters {
				if c.subject == "" {
					continue
				}
				key := store.RateLimitKey(fmt.Sprintf("%s:%s:%s", name, c.dimension, c.subject))
				hits, err := store.IncrWithTTL(ctx, key, rule.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if hits > int64(c.limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":    name,
							"dimension": c.dimension,
							"hits":      hits,
							"limit":     c.limit,
						}), "rate limit exceeded")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accountEmail(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

// digest keeps raw emails out of Redis keys and logs.
func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}
