package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Company is a delivery tenant. SiteCommission and DeliveryPrice are only
// read when an order is created.
type Company struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email          string          `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash   string          `gorm:"column:password_hash;not null" json:"-"`
	PhoneNumber    string          `gorm:"column:phone_number" json:"phone_number"`
	Type           string          `gorm:"column:type;not null;default:'delivery'" json:"type"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	LogoURL        string          `gorm:"column:logo_url" json:"logo_url"`
	Address        string          `gorm:"column:address" json:"address"`
	City           string          `gorm:"column:city" json:"city"`
	State          string          `gorm:"column:state" json:"state"`
	Country        string          `gorm:"column:country" json:"country"`
	ZipCode        string          `gorm:"column:zip_code" json:"zip_code"`
	Activated      bool            `gorm:"column:activated;not null" json:"activated"`
	EmailVerified  bool            `gorm:"column:email_verified;not null;default:false" json:"email_verified"`
	Verified       bool            `gorm:"column:verified;not null;default:false" json:"verified"`
	SiteCommission decimal.Decimal `gorm:"column:site_commission;type:numeric(6,4);not null" json:"site_commission"`
	DeliveryPrice  decimal.Decimal `gorm:"column:delivery_price;type:numeric(14,2);not null" json:"delivery_price"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Snapshot captures the contact fields copied onto order details.
func (c *Company) Snapshot() types.CompanySnapshot {
	return types.CompanySnapshot{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		LogoURL: c.LogoURL,
		Address: c.Address,
		City:    c.City,
		State:   c.State,
		Country: c.Country,
	}
}

// DeliveryZone prices delivery to a set of areas within a city.
type DeliveryZone struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID       `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	City          string          `gorm:"column:city;not null;index" json:"city"`
	Areas         []string        `gorm:"column:areas;type:jsonb;serializer:json" json:"areas,omitempty"`
	DeliveryPrice decimal.Decimal `gorm:"column:delivery_price;type:numeric(14,2);not null" json:"delivery_price"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (z *DeliveryZone) BeforeCreate(*gorm.DB) error {
	ensureID(&z.ID)
	return nil
}

// Snapshot freezes the zone for an order detail.
func (z *DeliveryZone) Snapshot() types.DeliveryZoneSnapshot {
	areas := make([]string, len(z.Areas))
	copy(areas, z.Areas)
	return types.DeliveryZoneSnapshot{
		ID:            z.ID,
		Name:          z.Name,
		City:          z.City,
		Areas:         areas,
		DeliveryPrice: z.DeliveryPrice,
	}
}

// Driver is a field agent of a delivery company.
type Driver struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CompanyID    uuid.UUID       `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Email        string          `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string          `gorm:"column:password_hash;not null" json:"-"`
	PhoneNumber  string          `gorm:"column:phone_number" json:"phone_number"`
	FirstName    string          `gorm:"column:first_name" json:"first_name"`
	LastName     string          `gorm:"column:last_name" json:"last_name"`
	AvatarURL    string          `gorm:"column:avatar_url" json:"avatar_url"`
	Address      string          `gorm:"column:address" json:"address"`
	City         string          `gorm:"column:city" json:"city"`
	State        string          `gorm:"column:state" json:"state"`
	Country      string          `gorm:"column:country" json:"country"`
	ZipCode      string          `gorm:"column:zip_code" json:"zip_code"`
	Activated    bool            `gorm:"column:activated;not null" json:"activated"`
	LastLocation *types.Location `gorm:"column:last_location;type:jsonb;serializer:json" json:"last_location,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (d *Driver) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
