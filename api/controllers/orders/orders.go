package orders

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/api/validators"
	internalorders "github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

// Service is the slice of the orders service the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	UpdatePaid(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, detailID uuid.UUID, status enums.OrderStatus, actor internalorders.Actor) (*models.OrderDetail, error)
	RequestRefund(ctx context.Context, detailID uuid.UUID, reason string, actor internalorders.Actor) (*models.RefundRequest, error)
	LogHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByTrackingCode(ctx context.Context, code string) (*models.Order, error)
	List(ctx context.Context, filter internalorders.ListFilter, params pagination.Params) (pagination.Page[models.Order], error)
	SaleStats(ctx context.Context, filter internalorders.SaleStatsFilter) (*internalorders.SaleStats, error)
	DigitalFileFromToken(ctx context.Context, detailID uuid.UUID, token string) (*models.DigitalFile, error)
}

type markPaidRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

const maxRefundReasonLen = 2000

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")

func handle(svc Service, logg *logger.Logger, status int, fn responses.Endpoint) http.HandlerFunc {
	if svc == nil {
		return responses.Fail(logg, errUnavailable)
	}
	return responses.Handle(logg, status, fn)
}

// Create prices and persists a new order. Anonymous checkout is allowed; a
// signed-in customer becomes the order owner.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		var input internalorders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		if middleware.RoleFromContext(r.Context()) == enums.ActorRoleCustomer {
			customerID := middleware.SubjectIDFromContext(r.Context())
			input.CustomerID = &customerID
		}
		input.UserIP, input.UserAgent = clientIP(r), r.UserAgent()
		return svc.Create(r.Context(), input)
	})
}

// List pages orders scoped to the caller: customers see their own, shops see
// orders containing their lines, admins see everything.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		params, err := validators.ParsePageParams(r)
		if err != nil {
			return nil, err
		}
		filter, err := buildListFilter(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), filter, params)
	})
}

// visibleOrder loads the {orderId} route order if the caller may see it.
func visibleOrder(svc Service, r *http.Request) (*models.Order, error) {
	orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
	if err != nil {
		return nil, err
	}
	order, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	return order, authorizeOrder(r, order)
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		return visibleOrder(svc, r)
	})
}

// Logs returns the audit trail of an order.
func Logs(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		order, err := visibleOrder(svc, r)
		if err != nil {
			return nil, err
		}
		return svc.LogHistory(r.Context(), order.ID)
	})
}

// Track resolves an order by its public tracking code.
func Track(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		return svc.GetByTrackingCode(r.Context(), chi.URLParam(r, "trackingCode"))
	})
}

// UpdateStatus moves one order detail through the order status machine.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		detailID, err := validators.ParseUUIDParam(r, "detailId", "order detail id")
		if err != nil {
			return nil, err
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		return svc.UpdateStatus(r.Context(), detailID, status, ActorFromRequest(r))
	})
}

// RequestRefund records a refund ask for one order detail.
func RequestRefund(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		detailID, err := validators.ParseUUIDParam(r, "detailId", "order detail id")
		if err != nil {
			return nil, err
		}
		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		reason := validators.SanitizeString(payload.Reason, maxRefundReasonLen)
		return svc.RequestRefund(r.Context(), detailID, reason, ActorFromRequest(r))
	})
}

// DownloadDigital exchanges a download token for the purchased file. Files
// hosted elsewhere are answered with a redirect.
func DownloadDigital(svc Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return responses.Fail(logg, errUnavailable)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := digitalFile(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if strings.HasPrefix(file.FilePath, "https://") || strings.HasPrefix(file.FilePath, "http://") {
			http.Redirect(w, r, file.FilePath, http.StatusFound)
			return
		}
		responses.WriteSuccess(w, file)
	}
}

func digitalFile(svc Service, r *http.Request) (*models.DigitalFile, error) {
	detailID, err := validators.ParseUUIDParam(r, "detailId", "order detail id")
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	return svc.DigitalFileFromToken(r.Context(), detailID, token)
}

// MarkPaid confirms payment for an order.
func MarkPaid(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			return nil, err
		}
		var payload markPaidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdatePaid(r.Context(), orderID, strings.TrimSpace(payload.TransactionID))
	})
}

// SaleStats aggregates completed sales, optionally for one shop and window.
func SaleStats(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		query := r.URL.Query()
		var (
			filter internalorders.SaleStatsFilter
			err    error
		)
		if filter.ShopID, err = validators.ParseOptionalUUID(query.Get("shop_id"), "shop_id"); err != nil {
			return nil, err
		}
		if filter.From, filter.To, err = validators.ParseDateRange(r); err != nil {
			return nil, err
		}
		return svc.SaleStats(r.Context(), filter)
	})
}

// ActorFromRequest builds the service actor from the authenticated caller.
func ActorFromRequest(r *http.Request) internalorders.Actor {
	ctx := r.Context()
	actor := internalorders.Actor{
		Role:     middleware.RoleFromContext(ctx),
		TenantID: middleware.TenantIDFromContext(ctx),
	}
	if id := middleware.SubjectIDFromContext(ctx); id != uuid.Nil {
		actor.ID = &id
	}
	return actor
}

func buildListFilter(r *http.Request) (internalorders.ListFilter, error) {
	query := r.URL.Query()
	filter := internalorders.ListFilter{
		TrackingCode: strings.ToUpper(strings.TrimSpace(query.Get("tracking_code"))),
	}

	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case enums.ActorRoleAdmin:
		shopID, err := validators.ParseOptionalUUID(query.Get("shop_id"), "shop_id")
		if err != nil {
			return filter, err
		}
		filter.ShopID = shopID
	case enums.ActorRoleShop:
		tenantID := middleware.TenantIDFromContext(ctx)
		if tenantID == nil {
			return filter, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
		}
		filter.ShopID = tenantID
	case enums.ActorRoleCustomer:
		customerID := middleware.SubjectIDFromContext(ctx)
		filter.CustomerID = &customerID
	default:
		return filter, pkgerrors.New(pkgerrors.CodeForbidden, "orders are not visible to this role")
	}

	if raw := strings.TrimSpace(query.Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid payment_status %q", raw))
		}
		filter.PaymentStatus = &status
	}

	var err error
	filter.From, filter.To, err = validators.ParseDateRange(r)
	return filter, err
}

func authorizeOrder(r *http.Request, order *models.Order) error {
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleCustomer:
		if order.CustomerID != nil && *order.CustomerID == middleware.SubjectIDFromContext(ctx) {
			return nil
		}
	case enums.ActorRoleShop:
		tenantID := middleware.TenantIDFromContext(ctx)
		if tenantID == nil {
			break
		}
		for _, detail := range order.Details {
			if detail.ShopID == *tenantID {
				return nil
			}
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
