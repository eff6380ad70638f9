package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// identity is the authenticated caller carried on the request context.
type identity struct {
	subject uuid.UUID
	role    enums.ActorRole
	tenant  *uuid.UUID
}

type identityKey struct{}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// SubjectIDFromContext returns the authenticated principal, or uuid.Nil.
func SubjectIDFromContext(ctx context.Context) uuid.UUID { return identityFrom(ctx).subject }

// RoleFromContext is empty for anonymous requests.
func RoleFromContext(ctx context.Context) enums.ActorRole { return identityFrom(ctx).role }

// TenantIDFromContext returns the shop or company the caller acts for. Each
// call returns a fresh copy.
func TenantIDFromContext(ctx context.Context) *uuid.UUID {
	tenant := identityFrom(ctx).tenant
	if tenant == nil {
		return nil
	}
	id := *tenant
	return &id
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, subjectID uuid.UUID, role enums.ActorRole, tenantID *uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := identity{subject: subjectID, role: role}
	if tenantID != nil {
		tenant := *tenantID
		id.tenant = &tenant
	}
	return context.WithValue(ctx, identityKey{}, id)
}
