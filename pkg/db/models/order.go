package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// Order is the aggregate root of one checkout. Totals are the sum of its details.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID           *uuid.UUID          `gorm:"column:customer_id;type:uuid;index" json:"customer_id,omitempty"`
	TrackingCode         string              `gorm:"column:tracking_code;not null;uniqueIndex" json:"tracking_code"`
	TotalPrice           decimal.Decimal     `gorm:"column:total_price;type:numeric(14,2);not null;default:0" json:"total_price"`
	TotalProducts        int                 `gorm:"column:total_products;not null;default:0" json:"total_products"`
	Currency             string              `gorm:"column:currency;not null" json:"currency"`
	UserCurrency         string              `gorm:"column:user_currency;not null" json:"user_currency"`
	CurrencyExchangeRate decimal.Decimal     `gorm:"column:currency_exchange_rate;type:numeric(14,6);not null;default:1" json:"currency_exchange_rate"`
	UserTotalPrice       decimal.Decimal     `gorm:"column:user_total_price;type:numeric(14,2);not null;default:0" json:"user_total_price"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'cod'" json:"payment_method"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"payment_status"`
	TransactionID        *string             `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	FirstName            string              `gorm:"column:first_name" json:"first_name"`
	LastName             string              `gorm:"column:last_name" json:"last_name"`
	Email                string              `gorm:"column:email" json:"email"`
	PhoneNumber          string              `gorm:"column:phone_number" json:"phone_number"`
	StreetAddress        string              `gorm:"column:street_address" json:"street_address"`
	ShippingAddress      string              `gorm:"column:shipping_address" json:"shipping_address"`
	City                 string              `gorm:"column:city" json:"city"`
	State                string              `gorm:"column:state" json:"state"`
	Country              string              `gorm:"column:country" json:"country"`
	ZipCode              string              `gorm:"column:zip_code" json:"zip_code"`
	UserIP               string              `gorm:"column:user_ip" json:"user_ip"`
	UserAgent            string              `gorm:"column:user_agent" json:"user_agent"`
	Details              []OrderDetail       `gorm:"foreignKey:OrderID" json:"details,omitempty"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// FullName joins the buyer's first and last name.
func (o *Order) FullName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}
