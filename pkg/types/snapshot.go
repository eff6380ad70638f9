package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// ProductSnapshot freezes the product fields an order detail needs after
// purchase. It is written once and never re-derived from the catalog.
type ProductSnapshot struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Type          enums.ProductType `json:"type"`
	SKU           string            `json:"sku,omitempty"`
	Price         decimal.Decimal   `json:"price"`
	SalePrice     *decimal.Decimal  `json:"sale_price,omitempty"`
	TaxClass      string            `json:"tax_class,omitempty"`
	TaxPercentage decimal.Decimal   `json:"tax_percentage"`
	FreeShip      bool              `json:"free_ship"`
	DigitalFileID *uuid.UUID        `json:"digital_file_id,omitempty"`
	MainImageURL  string            `json:"main_image_url,omitempty"`
}

// VariantSnapshot freezes the purchased variant.
type VariantSnapshot struct {
	ID            uuid.UUID         `json:"id"`
	Price         *decimal.Decimal  `json:"price,omitempty"`
	SalePrice     *decimal.Decimal  `json:"sale_price,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
	DigitalFileID *uuid.UUID        `json:"digital_file_id,omitempty"`
}

// ShopSnapshot is the subset of the seller captured on each order detail.
type ShopSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Alias       string    `json:"alias,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// CompanySnapshot is the delivery company contact captured on an order detail.
type CompanySnapshot struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	LogoURL string    `json:"logo_url,omitempty"`
	Address string    `json:"address,omitempty"`
	City    string    `json:"city,omitempty"`
	State   string    `json:"state,omitempty"`
	Country string    `json:"country,omitempty"`
}

// DeliveryZoneSnapshot freezes the zone price used for a delivery fee.
type DeliveryZoneSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	City          string          `json:"city"`
	Areas         []string        `json:"areas"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
}

// PayoutAccountSnapshot is the destination captured on a payout request.
type PayoutAccountSnapshot struct {
	Type          string `json:"type"`
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	BranchCode    string `json:"branch_code,omitempty"`
	PaypalAccount string `json:"paypal_account,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// Location is a driver's last reported position.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FreeShipArea restricts free shipping to a buyer address field value.
type FreeShipArea struct {
	AreaType enums.FreeShipAreaType `json:"area_type"`
	Value    string                 `json:"value"`
}

// Balance is a payable aggregate over settled order details.
type Balance struct {
	Balance      decimal.Decimal `json:"balance"`
	Commission   decimal.Decimal `json:"commission"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	TotalProduct int64           `json:"total_product"`
	TotalOrder   int64           `json:"total_order"`
}
