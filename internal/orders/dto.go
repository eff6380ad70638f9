package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// CreateOrderLine is one requested product in a checkout.
type CreateOrderLine struct {
	ProductID         uuid.UUID         `json:"product_id" validate:"required"`
	Quantity          int               `json:"quantity" validate:"required,gt=0"`
	ProductVariantID  *uuid.UUID        `json:"product_variant_id,omitempty"`
	VariantOptions    map[string]string `json:"variant_options,omitempty"`
	CouponCode        string            `json:"coupon_code,omitempty"`
	DeliveryCompanyID *uuid.UUID        `json:"delivery_company_id,omitempty"`
	DeliveryZoneID    *uuid.UUID        `json:"delivery_zone_id,omitempty"`
	UserNote          string            `json:"user_note,omitempty"`
	PickUpAddress     string            `json:"pick_up_address,omitempty"`
}

// CreateOrderInput is the checkout request: lines plus buyer contact and shipping fields.
type CreateOrderInput struct {
	CustomerID           *uuid.UUID          `json:"-"`
	Lines                []CreateOrderLine   `json:"products" validate:"required,min=1,dive"`
	PaymentMethod        enums.PaymentMethod `json:"payment_method" validate:"required"`
	FirstName            string              `json:"first_name" validate:"required"`
	LastName             string              `json:"last_name"`
	Email                string              `json:"email" validate:"required,email"`
	PhoneNumber          string              `json:"phone_number" validate:"required"`
	StreetAddress        string              `json:"street_address"`
	ShippingAddress      string              `json:"shipping_address"`
	City                 string              `json:"city"`
	State                string              `json:"state"`
	Country              string              `json:"country"`
	ZipCode              string              `json:"zip_code"`
	UserCurrency         string              `json:"user_currency"`
	CurrencyExchangeRate *decimal.Decimal    `json:"currency_exchange_rate,omitempty"`
	UserIP               string              `json:"-"`
	UserAgent            string              `json:"-"`
}

// ListFilter narrows the order listing. Shop and customer scopes are set by
// the caller from the authenticated actor.
type ListFilter struct {
	CustomerID    *uuid.UUID
	ShopID        *uuid.UUID
	PaymentStatus *enums.PaymentStatus
	TrackingCode  string
	From          *time.Time
	To            *time.Time
}

// SaleStatsFilter scopes SaleStats to a shop and a creation window.
type SaleStatsFilter struct {
	ShopID *uuid.UUID
	From   *time.Time
	To     *time.Time
}

// SaleStats aggregates completed order details.
type SaleStats struct {
	TotalPrice   decimal.Decimal `json:"total_price"`
	Commission   decimal.Decimal `json:"commission"`
	Balance      decimal.Decimal `json:"balance"`
	TotalProduct int64           `json:"total_product"`
	TotalOrder   int64           `json:"total_order"`
}

// LogEntry is appended to an order's audit trail.
type LogEntry struct {
	OrderID       uuid.UUID
	OrderDetailID *uuid.UUID
	EventType     string
	ChangedBy     *uuid.UUID
	OldData       map[string]any
	NewData       map[string]any
}

// DigitalLink is a signed download link issued for a paid digital line.
type DigitalLink struct {
	OrderDetailID uuid.UUID `json:"order_detail_id"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Actor identifies who performs a change. TenantID is the shop or company
// the actor acts for.
type Actor struct {
	ID       *uuid.UUID
	Role     enums.ActorRole
	TenantID *uuid.UUID
}

// Log event types.
const (
	LogEventCreated        = "created"
	LogEventPaid           = "updatePaid"
	LogEventStatus         = "updateStatus"
	LogEventRefund         = "refundRequested"
	LogEventDigitalLink    = "digitalLinkIssued"
	LogEventDeliveryStatus = "deliveryStatus"
	LogEventDriverAssigned = "driverAssigned"
)
