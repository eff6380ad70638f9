package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
)

// recipientFromRequest maps the caller to the inbox it reads. Shop and company
// users share their tenant's inbox; everyone else has a personal one.
func recipientFromRequest(r *http.Request) (notifications.Recipient, error) {
	ctx := r.Context()
	role := middleware.RoleFromContext(ctx)
	if role == "" {
		return notifications.Recipient{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}

	switch role {
	case enums.ActorRoleShop, enums.ActorRoleCompany:
		tenantID := middleware.TenantIDFromContext(ctx)
		if tenantID == nil {
			return notifications.Recipient{}, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
		}
		return notifications.Recipient{Role: role, ID: *tenantID}, nil
	default:
		subjectID := middleware.SubjectIDFromContext(ctx)
		if subjectID == uuid.Nil {
			return notifications.Recipient{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
		}
		return notifications.Recipient{Role: role, ID: subjectID}, nil
	}
}
