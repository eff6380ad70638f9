package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Shop is a seller on the marketplace.
type Shop struct {
	ID                       uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name                     string           `gorm:"column:name;not null" json:"name"`
	Alias                    string           `gorm:"column:alias" json:"alias"`
	Email                    string           `gorm:"column:email" json:"email"`
	PhoneNumber              string           `gorm:"column:phone_number" json:"phone_number"`
	Address                  string           `gorm:"column:address" json:"address"`
	Commission               *decimal.Decimal `gorm:"column:commission;type:numeric(6,4)" json:"commission,omitempty"`
	StoreWideShipping        bool             `gorm:"column:store_wide_shipping;not null;default:false" json:"store_wide_shipping"`
	ShippingDefaultPrice     decimal.Decimal  `gorm:"column:shipping_default_price;type:numeric(14,2);not null;default:0" json:"shipping_default_price"`
	ShippingPerQuantityPrice decimal.Decimal  `gorm:"column:shipping_per_quantity_price;type:numeric(14,2);not null;default:0" json:"shipping_per_quantity_price"`
	FreeShip                 bool             `gorm:"column:free_ship;not null;default:false" json:"free_ship"`
	PickUpAtStore            bool             `gorm:"column:pick_up_at_store;not null;default:false" json:"pick_up_at_store"`
	Activated                bool             `gorm:"column:activated;not null" json:"activated"`
	CreatedAt                time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Snapshot captures the seller fields copied onto order details.
func (s *Shop) Snapshot() types.ShopSnapshot {
	return types.ShopSnapshot{
		ID:          s.ID,
		Name:        s.Name,
		Alias:       s.Alias,
		PhoneNumber: s.PhoneNumber,
		Email:       s.Email,
	}
}

// SiteSetting is a key/value row for marketplace-wide configuration.
type SiteSetting struct {
	Key       string    `gorm:"column:key;primaryKey" json:"key"`
	Value     string    `gorm:"column:value;not null" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
