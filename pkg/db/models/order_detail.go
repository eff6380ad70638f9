package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// OrderDetail is one shop line of an order and the unit of delivery and
// payout. Monetary fields and the *Details snapshots are frozen at creation.
type OrderDetail struct {
	ID                      uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID                 uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	CustomerID              *uuid.UUID                  `gorm:"column:customer_id;type:uuid;index" json:"customer_id,omitempty"`
	ShopID                  uuid.UUID                   `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	ProductID               uuid.UUID                   `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	ProductVariantID        *uuid.UUID                  `gorm:"column:product_variant_id;type:uuid" json:"product_variant_id,omitempty"`
	VariantOptions          map[string]string           `gorm:"column:variant_options;type:jsonb;serializer:json" json:"variant_options,omitempty"`
	TrackingCode            string                      `gorm:"column:tracking_code;not null;index" json:"tracking_code"`
	Quantity                int                         `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice               decimal.Decimal             `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unit_price"`
	BasePrice               decimal.Decimal             `gorm:"column:base_price;type:numeric(14,2);not null" json:"base_price"`
	ProductPrice            decimal.Decimal             `gorm:"column:product_price;type:numeric(14,2);not null" json:"product_price"`
	TaxClass                string                      `gorm:"column:tax_class" json:"tax_class"`
	TaxPercentage           decimal.Decimal             `gorm:"column:tax_percentage;type:numeric(5,2);not null" json:"tax_percentage"`
	TaxPrice                decimal.Decimal             `gorm:"column:tax_price;type:numeric(14,2);not null" json:"tax_price"`
	ShippingPrice           decimal.Decimal             `gorm:"column:shipping_price;type:numeric(14,2);not null" json:"shipping_price"`
	DeliveryPrice           decimal.Decimal             `gorm:"column:delivery_price;type:numeric(14,2);not null" json:"delivery_price"`
	TotalPrice              decimal.Decimal             `gorm:"column:total_price;type:numeric(14,2);not null" json:"total_price"`
	Currency                string                      `gorm:"column:currency;not null" json:"currency"`
	UserCurrency            string                      `gorm:"column:user_currency;not null" json:"user_currency"`
	CurrencyExchangeRate    decimal.Decimal             `gorm:"column:currency_exchange_rate;type:numeric(14,6);not null" json:"currency_exchange_rate"`
	UserTotalPrice          decimal.Decimal             `gorm:"column:user_total_price;type:numeric(14,2);not null" json:"user_total_price"`
	DiscountPercentage      decimal.Decimal             `gorm:"column:discount_percentage;type:numeric(5,2);not null" json:"discount_percentage"`
	CouponCode              *string                     `gorm:"column:coupon_code" json:"coupon_code,omitempty"`
	CouponName              *string                     `gorm:"column:coupon_name" json:"coupon_name,omitempty"`
	CommissionRate          decimal.Decimal             `gorm:"column:commission_rate;type:numeric(6,4);not null" json:"commission_rate"`
	Commission              decimal.Decimal             `gorm:"column:commission;type:numeric(14,2);not null" json:"commission"`
	Balance                 decimal.Decimal             `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	DeliveryCompanyID       *uuid.UUID                  `gorm:"column:delivery_company_id;type:uuid;index" json:"delivery_company_id,omitempty"`
	DeliveryZoneID          *uuid.UUID                  `gorm:"column:delivery_zone_id;type:uuid" json:"delivery_zone_id,omitempty"`
	DeliveryCommissionRate  decimal.Decimal             `gorm:"column:delivery_commission_rate;type:numeric(6,4);not null" json:"delivery_commission_rate"`
	DeliveryCommission      decimal.Decimal             `gorm:"column:delivery_commission;type:numeric(14,2);not null" json:"delivery_commission"`
	DeliveryBalance         decimal.Decimal             `gorm:"column:delivery_balance;type:numeric(14,2);not null" json:"delivery_balance"`
	DriverID                *uuid.UUID                  `gorm:"column:driver_id;type:uuid;index" json:"driver_id,omitempty"`
	Status                  enums.OrderStatus           `gorm:"column:status;type:text;not null;index" json:"status"`
	DeliveryStatus          enums.DeliveryStatus        `gorm:"column:delivery_status;type:text;not null;index" json:"delivery_status"`
	PaymentMethod           enums.PaymentMethod         `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	PaymentStatus           enums.PaymentStatus         `gorm:"column:payment_status;type:text;not null;index" json:"payment_status"`
	TransactionID           *string                     `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	UserNote                string                      `gorm:"column:user_note" json:"user_note"`
	ShopNote                string                      `gorm:"column:shop_note" json:"shop_note"`
	PickUpAtStore           bool                        `gorm:"column:pick_up_at_store;not null;default:false" json:"pick_up_at_store"`
	PickUpAddress           string                      `gorm:"column:pick_up_address" json:"pick_up_address"`
	FirstName               string                      `gorm:"column:first_name" json:"first_name"`
	LastName                string                      `gorm:"column:last_name" json:"last_name"`
	Email                   string                      `gorm:"column:email" json:"email"`
	PhoneNumber             string                      `gorm:"column:phone_number" json:"phone_number"`
	StreetAddress           string                      `gorm:"column:street_address" json:"street_address"`
	ShippingAddress         string                      `gorm:"column:shipping_address" json:"shipping_address"`
	City                    string                      `gorm:"column:city" json:"city"`
	State                   string                      `gorm:"column:state" json:"state"`
	Country                 string                      `gorm:"column:country" json:"country"`
	ZipCode                 string                      `gorm:"column:zip_code" json:"zip_code"`
	ProductDetails          types.ProductSnapshot       `gorm:"column:product_details;type:jsonb;serializer:json" json:"product_details"`
	VariantDetails          *types.VariantSnapshot      `gorm:"column:variant_details;type:jsonb;serializer:json" json:"variant_details,omitempty"`
	ShopDetail              types.ShopSnapshot          `gorm:"column:shop_detail;type:jsonb;serializer:json" json:"shop_detail"`
	DeliveryCompanyInfo     *types.CompanySnapshot      `gorm:"column:delivery_company_info;type:jsonb;serializer:json" json:"delivery_company_info,omitempty"`
	DeliveryZoneDetail      *types.DeliveryZoneSnapshot `gorm:"column:delivery_zone_detail;type:jsonb;serializer:json" json:"delivery_zone_detail,omitempty"`
	CompletePayout          bool                        `gorm:"column:complete_payout;not null;default:false" json:"complete_payout"`
	PayoutRequestID         *uuid.UUID                  `gorm:"column:payout_request_id;type:uuid;index" json:"payout_request_id,omitempty"`
	DeliveryCompletePayout  bool                        `gorm:"column:delivery_complete_payout;not null;default:false" json:"delivery_complete_payout"`
	DeliveryPayoutRequestID *uuid.UUID                  `gorm:"column:delivery_payout_request_id;type:uuid;index" json:"delivery_payout_request_id,omitempty"`
	CreatedAt               time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (d *OrderDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DigitalFileID returns the variant's digital file, falling back to the product's.
func (d *OrderDetail) DigitalFileID() *uuid.UUID {
	if d.VariantDetails != nil && d.VariantDetails.DigitalFileID != nil {
		return d.VariantDetails.DigitalFileID
	}
	return d.ProductDetails.DigitalFileID
}

// OrderLog is an append-only audit entry for order and detail changes.
type OrderLog struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	OrderDetailID *uuid.UUID     `gorm:"column:order_detail_id;type:uuid" json:"order_detail_id,omitempty"`
	EventType     string         `gorm:"column:event_type;not null" json:"event_type"`
	ChangedBy     *uuid.UUID     `gorm:"column:changed_by;type:uuid" json:"changed_by,omitempty"`
	OldData       map[string]any `gorm:"column:old_data;type:jsonb;serializer:json" json:"old_data,omitempty"`
	NewData       map[string]any `gorm:"column:new_data;type:jsonb;serializer:json" json:"new_data,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (l *OrderLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// RefundRequest records a buyer's refund ask for one order detail.
type RefundRequest struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null" json:"order_id"`
	OrderDetailID uuid.UUID          `gorm:"column:order_detail_id;type:uuid;not null;index" json:"order_detail_id"`
	ShopID        uuid.UUID          `gorm:"column:shop_id;type:uuid;not null" json:"shop_id"`
	CustomerID    *uuid.UUID         `gorm:"column:customer_id;type:uuid" json:"customer_id,omitempty"`
	Reason        string             `gorm:"column:reason;not null" json:"reason"`
	Status        enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *RefundRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
