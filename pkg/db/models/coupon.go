package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon is a shop-scoped percentage discount code.
type Coupon struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShopID             uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	Name               string          `gorm:"column:name;not null" json:"name"`
	Code               string          `gorm:"column:code;not null" json:"code"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null" json:"discount_percentage"`
	Limit              int             `gorm:"column:usage_limit;not null;default:0" json:"usage_limit"`
	UsedCount          int             `gorm:"column:used_count;not null;default:0" json:"used_count"`
	StartTime          *time.Time      `gorm:"column:start_time" json:"start_time,omitempty"`
	ExpiredTime        *time.Time      `gorm:"column:expired_time" json:"expired_time,omitempty"`
	Active             bool            `gorm:"column:active;not null" json:"active"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
