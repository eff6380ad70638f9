package payouts

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/api/validators"
	"github.com/bazaarhq/bazaar-backend/internal/balances"
	internalpayouts "github.com/bazaarhq/bazaar-backend/internal/payouts"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Service is the slice of the payouts service the HTTP layer needs.
type Service interface {
	Balance(ctx context.Context, tenant balances.Tenant) (types.Balance, error)
	SendRequest(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error)
	Approve(ctx context.Context, id uuid.UUID, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error)
	Get(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) (*models.PayoutRequest, error)
	Items(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) ([]models.OrderDetail, error)
	List(ctx context.Context, filter internalpayouts.ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error)
	Stats(ctx context.Context, filter internalpayouts.StatsFilter) (internalpayouts.Stats, error)
	CreateAccount(ctx context.Context, tenant balances.Tenant, input internalpayouts.CreateAccountInput) (*models.PayoutAccount, error)
	ListAccounts(ctx context.Context, tenant balances.Tenant) ([]models.PayoutAccount, error)
}

type sendRequestBody struct {
	PayoutAccountID *uuid.UUID                   `json:"payout_account_id,omitempty"`
	PayoutAccount   *types.PayoutAccountSnapshot `json:"payout_account,omitempty"`
}

type approveBody struct {
	Note *string `json:"note,omitempty"`
}

type rejectBody struct {
	Reason string  `json:"reason" validate:"required"`
	Note   *string `json:"note,omitempty"`
}

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable")

func handle(svc Service, logg *logger.Logger, status int, fn responses.Endpoint) http.HandlerFunc {
	if svc == nil {
		return responses.Fail(logg, errUnavailable)
	}
	return responses.Handle(logg, status, fn)
}

// optionalBody decodes the request body into T when one was sent.
func optionalBody[T any](r *http.Request) (T, error) {
	var v T
	if r.ContentLength == 0 {
		return v, nil
	}
	err := validators.DecodeJSONBody(r, &v)
	return v, err
}

// Balance returns the payable balance of the caller's tenant. Admins name the
// tenant with tenant_type and tenant_id.
func Balance(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		tenant, err := tenantScope(r)
		if err != nil {
			return nil, err
		}
		if tenant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_type and tenant_id are required")
		}
		return svc.Balance(r.Context(), *tenant)
	})
}

// SendRequest snapshots the caller's balance into a pending payout request.
// The body is optional; without one the tenant's default account is used.
func SendRequest(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		tenant, err := callerTenant(r)
		if err != nil {
			return nil, err
		}
		body, err := optionalBody[sendRequestBody](r)
		if err != nil {
			return nil, err
		}
		return svc.SendRequest(r.Context(), internalpayouts.SendRequestInput{
			Tenant:          tenant,
			PayoutAccountID: body.PayoutAccountID,
			PayoutAccount:   body.PayoutAccount,
		})
	})
}

func ListRequests(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		tenant, err := tenantScope(r)
		if err != nil {
			return nil, err
		}
		params, err := validators.ParsePageParams(r)
		if err != nil {
			return nil, err
		}
		query := r.URL.Query()
		filter := internalpayouts.ListFilter{Tenant: tenant, Code: strings.TrimSpace(query.Get("code"))}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
			}
			filter.Status = &status
		}
		return svc.List(r.Context(), filter, params)
	})
}

func GetRequest(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, tenant, err := requestScope(r)
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), requestID, tenant)
	})
}

// RequestItems lists the order details settled by a payout request.
func RequestItems(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, tenant, err := requestScope(r)
		if err != nil {
			return nil, err
		}
		return svc.Items(r.Context(), requestID, tenant)
	})
}

func Approve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, err := validators.ParseUUIDParam(r, "requestId", "payout request id")
		if err != nil {
			return nil, err
		}
		body, err := optionalBody[approveBody](r)
		if err != nil {
			return nil, err
		}
		return svc.Approve(r.Context(), requestID, body.Note, adminActor(r))
	})
}

// Reject requires a reason; the note is optional.
func Reject(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, err := validators.ParseUUIDParam(r, "requestId", "payout request id")
		if err != nil {
			return nil, err
		}
		var body rejectBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), requestID, body.Reason, body.Note, adminActor(r))
	})
}

// Stats splits payout totals into pending and approved.
func Stats(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		tenant, err := tenantScope(r)
		if err != nil {
			return nil, err
		}
		filter := internalpayouts.StatsFilter{Tenant: tenant}
		if filter.From, filter.To, err = validators.ParseDateRange(r); err != nil {
			return nil, err
		}
		return svc.Stats(r.Context(), filter)
	})
}

func CreateAccount(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		tenant, err := callerTenant(r)
		if err != nil {
			return nil, err
		}
		var input internalpayouts.CreateAccountInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		return svc.CreateAccount(r.Context(), tenant, input)
	})
}

func ListAccounts(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		tenant, err := callerTenant(r)
		if err != nil {
			return nil, err
		}
		return svc.ListAccounts(r.Context(), tenant)
	})
}

// callerTenant maps a shop or company token to the payee it represents.
func callerTenant(r *http.Request) (balances.Tenant, error) {
	ctx := r.Context()
	tenantID := middleware.TenantIDFromContext(ctx)

	var tenantType enums.TenantType
	switch middleware.RoleFromContext(ctx) {
	case enums.ActorRoleShop:
		tenantType = enums.TenantTypeShop
	case enums.ActorRoleCompany:
		tenantType = enums.TenantTypeDelivery
	default:
		return balances.Tenant{}, pkgerrors.New(pkgerrors.CodeForbidden, "only shops and delivery companies receive payouts")
	}
	if tenantID == nil {
		return balances.Tenant{}, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	return balances.Tenant{Type: tenantType, ID: *tenantID}, nil
}

// tenantScope returns the caller's tenant, or for admins the optional
// tenant named in the query. A nil tenant means "all tenants".
func tenantScope(r *http.Request) (*balances.Tenant, error) {
	if middleware.RoleFromContext(r.Context()) != enums.ActorRoleAdmin {
		tenant, err := callerTenant(r)
		if err != nil {
			return nil, err
		}
		return &tenant, nil
	}

	query := r.URL.Query()
	rawType := strings.TrimSpace(query.Get("tenant_type"))
	tenantID, err := validators.ParseOptionalUUID(query.Get("tenant_id"), "tenant_id")
	if err != nil {
		return nil, err
	}
	if rawType == "" && tenantID == nil {
		return nil, nil
	}
	tenantType, err := enums.ParseTenantType(rawType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant_type")
	}
	if tenantID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required with tenant_type")
	}
	return &balances.Tenant{Type: tenantType, ID: *tenantID}, nil
}

func requestScope(r *http.Request) (uuid.UUID, *balances.Tenant, error) {
	requestID, err := validators.ParseUUIDParam(r, "requestId", "payout request id")
	if err != nil {
		return uuid.Nil, nil, err
	}
	if middleware.RoleFromContext(r.Context()) == enums.ActorRoleAdmin {
		return requestID, nil, nil
	}
	tenant, err := callerTenant(r)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return requestID, &tenant, nil
}

func adminActor(r *http.Request) *outbox.ActorRef {
	id := middleware.SubjectIDFromContext(r.Context())
	if id == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{ID: id, Role: middleware.RoleFromContext(r.Context())}
}
