package controllers

import (
	"net/http"

	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/api/validators"
	"github.com/bazaarhq/bazaar-backend/internal/auth"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// TokenHeader carries the freshly minted access token next to the JSON body.
const TokenHeader = "X-Bazaar-Token"

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// AuthLogin signs in a company or driver account.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fail := func(err error) { responses.WriteError(ctx, logg, w, err) }
		if svc == nil {
			fail(errAuthUnavailable)
			return
		}

		var creds auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &creds); err != nil {
			fail(err)
			return
		}
		session, err := svc.Login(ctx, creds)
		if err != nil {
			fail(err)
			return
		}

		// Tokens must not be kept by shared caches.
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set(TokenHeader, session.AccessToken)
		responses.WriteSuccess(w, session)
	}
}
