package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
)

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: map[string]string{}}
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "bz:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryIdempotencyStore) Claim(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryIdempotencyStore) Put(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryIdempotencyStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func postOrder(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{"/api/v1/orders"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", moneyReplayTTL, true},
		{"payout request", http.MethodPost, "/api/v1/payouts/requests", moneyReplayTTL, true},
		{"mark paid", http.MethodPost, "/api/v1/admin/orders/{orderId}/paid", moneyReplayTTL, true},
		{"approve payout", http.MethodPost, "/api/v1/admin/payouts/{requestId}/approve", moneyReplayTTL, true},
		{"refund", http.MethodPost, "/api/v1/orders/details/{detailId}/refund", standardReplayTTL, true},
		{"assign driver", http.MethodPost, "/api/v1/delivery/orders/{detailId}/assign", standardReplayTTL, true},
		{"read all", http.MethodPost, "/api/v1/notifications/read-all", standardReplayTTL, true},
		{"list orders", http.MethodGet, "/api/v1/orders", 0, false},
		{"login", http.MethodPost, "/api/v1/auth/login", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := replayTTL(tt.method, tt.pattern)
		if ok != tt.ok || ttl != tt.want {
			t.Fatalf("%s: got (%v, %v) want (%v, %v)", tt.name, ttl, ok, tt.want, tt.ok)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a key")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder("", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := errorCode(t, rec); got != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"total":10}` {
			t.Fatalf("handler saw %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_id":"o-1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postOrder("k-1", `{"total":10}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postOrder("k-1", `{"total":10}`))

	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replayed response not marked")
	}
	if first.Header().Get("Idempotent-Replayed") != "" {
		t.Fatal("first response must not be marked as replayed")
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), postOrder("k-2", `{"total":10}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder("k-2", `{"total":99}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if got := errorCode(t, rec); got != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestIdempotencyRejectsConcurrentRetry(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("retry must not reach the handler")
	}))
	key := store.IdempotencyKey(requestScope(postOrder("k-3", `{}`)), "k-3")
	store.data[key] = inFlightMarker

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder("k-3", `{}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postOrder("k-4", `{}`))
	if store.size() != 0 {
		t.Fatalf("5xx left %d keys behind", store.size())
	}
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postOrder("k-4", `{}`))
	if calls != 2 || second.Code != http.StatusCreated {
		t.Fatalf("expected retry to run, calls=%d code=%d", calls, second.Code)
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	called := false
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if !called {
		t.Fatal("GET must pass through")
	}
}

func TestRoutePatternFallsBackOnMount(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/requests", nil)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{"/api/v1/*"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if got := routePattern(req); got != "/api/v1/payouts/requests" {
		t.Fatalf("unexpected pattern %q", got)
	}
}
