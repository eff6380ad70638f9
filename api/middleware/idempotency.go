package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarhq/bazaar-backend/api/responses"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	pkgredis "github.com/bazaarhq/bazaar-backend/pkg/redis"
)

// IdempotencyKeyHeader names the client-chosen retry key.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	standardReplayTTL = 24 * time.Hour
	moneyReplayTTL    = 7 * 24 * time.Hour
	inFlightTTL       = 2 * time.Minute
	inFlightMarker    = "in_flight"
)

// replayPolicy binds a POST route shape to how long its response is replayable.
type replayPolicy struct {
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

func (p replayPolicy) matches(path string) bool {
	if p.exact {
		return path == p.prefix
	}
	return strings.HasPrefix(path, p.prefix) && strings.HasSuffix(path, p.suffix)
}

// Order creation, payment confirmation and payout decisions move money and
// replay for a week. Everything else replays for a day.
var replayPolicies = []replayPolicy{
	{prefix: "/api/v1/orders", exact: true, ttl: moneyReplayTTL},
	{prefix: "/api/v1/payouts/requests", exact: true, ttl: moneyReplayTTL},
	{prefix: "/api/v1/admin/orders/", suffix: "/paid", ttl: moneyReplayTTL},
	{prefix: "/api/v1/admin/payouts/", ttl: moneyReplayTTL},
	{prefix: "/api/v1/orders/details/", suffix: "/refund", ttl: standardReplayTTL},
	{prefix: "/api/v1/delivery/orders/", ttl: standardReplayTTL},
	{prefix: "/api/v1/payouts/accounts", exact: true, ttl: standardReplayTTL},
	{prefix: "/api/v1/notifications/read-all", exact: true, ttl: standardReplayTTL},
	{prefix: "/api/v1/notifications/", suffix: "/read", ttl: standardReplayTTL},
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes the money-moving POST routes safe to retry. The first
// request with a given Idempotency-Key claims it and runs; its response is
// stored and replayed to every retry with the same body. A retry that arrives
// while the first is still running gets 409, and a reused key with a
// different body gets 409 as well. 5xx responses are not stored.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := replayTTL(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			}
			body, err := bufferBody(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			hash := fingerprint(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			claimed, err := store.Claim(ctx, key, inFlightMarker, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, logg, w, key, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// The client's connection may be gone by now; bookkeeping must still land.
			bg := context.WithoutCancel(ctx)
			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Release(bg, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: hash,
			})
			if err == nil {
				err = store.Put(bg, key, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replay(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, hash string) {
	raw, found, err := store.Lookup(ctx, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if !found || raw == inFlightMarker {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
		return
	}

	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	payload, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(payload)
}

// requestScope keeps keys from colliding across callers, tenants and routes.
func requestScope(r *http.Request) string {
	ctx := r.Context()
	tenant := ""
	if id := TenantIDFromContext(ctx); id != nil {
		tenant = id.String()
	}
	return strings.Join([]string{
		SubjectIDFromContext(ctx).String(),
		string(RoleFromContext(ctx)),
		tenant,
		r.Method,
		r.URL.Path,
	}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// routePattern prefers chi's matched pattern. Middleware mounted above a
// sub-router only sees the "/*" mount pattern, so the raw path is used then.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	for _, p := range replayPolicies {
		if p.matches(path) {
			return p.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
