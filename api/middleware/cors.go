package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// DefaultCORSOrigins are the first-party frontends allowed to call the API
// with credentials.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"https://bazaar.africa",
	"https://admin.bazaar.africa",
	"https://delivery.bazaar.africa",
}

// CORS applies the origin policy. An empty origins list means the defaults.
func CORS(origins ...string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, requestIDHeader},
		ExposedHeaders:   []string{"X-Bazaar-Token", requestIDHeader, "Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
