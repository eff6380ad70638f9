package middleware

import (
	"net/http"

	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// RequireRole admits only callers holding one of allowed. It must run after
// Auth; anonymous requests carry no role and get 403.
func RequireRole(logg *logger.Logger, allowed ...enums.ActorRole) func(http.Handler) http.Handler {
	permitted := make(map[enums.ActorRole]struct{}, len(allowed))
	for _, role := range allowed {
		permitted[role] = struct{}{}
	}
	denied := responses.Fail(logg, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := permitted[RoleFromContext(r.Context())]; !ok {
				denied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
