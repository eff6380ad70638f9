package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// OrderCreatedEvent is emitted once per checkout after every detail is persisted.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	TrackingCode  string              `json:"tracking_code"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	Email         string              `json:"email"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
	DetailIDs     []uuid.UUID         `json:"detail_ids"`
	ShopIDs       []uuid.UUID         `json:"shop_ids"`
}

// SaleLine is the per-detail slice of a paid order.
type SaleLine struct {
	OrderDetailID uuid.UUID       `json:"order_detail_id"`
	ShopID        uuid.UUID       `json:"shop_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	Commission    decimal.Decimal `json:"commission"`
	Balance       decimal.Decimal `json:"balance"`
}

// OrderPaidEvent is emitted when a payment is confirmed for an order.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	TrackingCode  string              `json:"tracking_code"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	Email         string              `json:"email"`
	TransactionID string              `json:"transaction_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
	PaidAt        time.Time           `json:"paid_at"`
	Lines         []SaleLine          `json:"lines"`
}

// OrderStatusChangedEvent reports a fulfilment status move on one detail.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderDetailID uuid.UUID         `json:"order_detail_id"`
	ShopID        uuid.UUID         `json:"shop_id"`
	CustomerID    *uuid.UUID        `json:"customer_id,omitempty"`
	Email         string            `json:"email"`
	TrackingCode  string            `json:"tracking_code"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	ChangedBy     *uuid.UUID        `json:"changed_by,omitempty"`
}

type RefundRequestedEvent struct {
	RefundRequestID uuid.UUID  `json:"refund_request_id"`
	OrderID         uuid.UUID  `json:"order_id"`
	OrderDetailID   uuid.UUID  `json:"order_detail_id"`
	ShopID          uuid.UUID  `json:"shop_id"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	TrackingCode    string     `json:"tracking_code"`
	Reason          string     `json:"reason"`
}

// DigitalLinkIssuedEvent carries a signed download link to the buyer.
type DigitalLinkIssuedEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	OrderDetailID uuid.UUID  `json:"order_detail_id"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	Email         string     `json:"email"`
	ProductName   string     `json:"product_name"`
	DownloadURL   string     `json:"download_url"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

type DeliveryStatusChangedEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderDetailID uuid.UUID            `json:"order_detail_id"`
	CompanyID     uuid.UUID            `json:"company_id"`
	DriverID      *uuid.UUID           `json:"driver_id,omitempty"`
	CustomerID    *uuid.UUID           `json:"customer_id,omitempty"`
	Email         string               `json:"email"`
	TrackingCode  string               `json:"tracking_code"`
	From          enums.DeliveryStatus `json:"from"`
	To            enums.DeliveryStatus `json:"to"`
	StatusText    string               `json:"status_text"`
}

type DriverAssignedEvent struct {
	DriverID       uuid.UUID   `json:"driver_id"`
	CompanyID      uuid.UUID   `json:"company_id"`
	OrderDetailIDs []uuid.UUID `json:"order_detail_ids"`
}

// DriverPositionUpdatedEvent is applied asynchronously by the worker.
type DriverPositionUpdatedEvent struct {
	DriverID  uuid.UUID      `json:"driver_id"`
	CompanyID uuid.UUID      `json:"company_id"`
	Location  types.Location `json:"location"`
	At        time.Time      `json:"at"`
}

type CompanyVerifiedEvent struct {
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
}

// PayoutRequestedEvent notifies the admin that a tenant asked to be paid.
type PayoutRequestedEvent struct {
	PayoutRequestID uuid.UUID        `json:"payout_request_id"`
	Code            string           `json:"code"`
	TenantType      enums.TenantType `json:"tenant_type"`
	TenantID        uuid.UUID        `json:"tenant_id"`
	Total           decimal.Decimal  `json:"total"`
	Commission      decimal.Decimal  `json:"commission"`
	Balance         decimal.Decimal  `json:"balance"`
	TotalOrder      int64            `json:"total_order"`
	RequestAttempts int              `json:"request_attempts"`
}

// PayoutDecidedEvent is shared by the approved and rejected events.
type PayoutDecidedEvent struct {
	PayoutRequestID uuid.UUID          `json:"payout_request_id"`
	Code            string             `json:"code"`
	TenantType      enums.TenantType   `json:"tenant_type"`
	TenantID        uuid.UUID          `json:"tenant_id"`
	Status          enums.PayoutStatus `json:"status"`
	Total           decimal.Decimal    `json:"total"`
	Commission      decimal.Decimal    `json:"commission"`
	Balance         decimal.Decimal    `json:"balance"`
	TotalProduct    int64              `json:"total_product"`
	TotalOrder      int64              `json:"total_order"`
	RejectReason    *string            `json:"reject_reason,omitempty"`
	Note            *string            `json:"note,omitempty"`
	DecidedAt       time.Time          `json:"decided_at"`
}
