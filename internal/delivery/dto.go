package delivery

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
)

// CompanyInput registers or creates a delivery company.
type CompanyInput struct {
	Email          string           `json:"email" validate:"required,email"`
	Password       string           `json:"password" validate:"required,min=6"`
	Name           string           `json:"name" validate:"required"`
	PhoneNumber    string           `json:"phone_number"`
	LogoURL        string           `json:"logo_url"`
	Address        string           `json:"address"`
	City           string           `json:"city"`
	State          string           `json:"state"`
	Country        string           `json:"country"`
	ZipCode        string           `json:"zip_code"`
	SiteCommission *decimal.Decimal `json:"site_commission,omitempty"`
	DeliveryPrice  *decimal.Decimal `json:"delivery_price,omitempty"`
	Verified       bool             `json:"verified"`
}

// UpdateCompanyInput patches a company. Nil fields are left unchanged and an
// empty password keeps the current one.
type UpdateCompanyInput struct {
	Name           *string          `json:"name,omitempty"`
	Password       *string          `json:"password,omitempty"`
	PhoneNumber    *string          `json:"phone_number,omitempty"`
	LogoURL        *string          `json:"logo_url,omitempty"`
	Address        *string          `json:"address,omitempty"`
	City           *string          `json:"city,omitempty"`
	State          *string          `json:"state,omitempty"`
	Country        *string          `json:"country,omitempty"`
	ZipCode        *string          `json:"zip_code,omitempty"`
	Activated      *bool            `json:"activated,omitempty"`
	Verified       *bool            `json:"verified,omitempty"`
	SiteCommission *decimal.Decimal `json:"site_commission,omitempty"`
	DeliveryPrice  *decimal.Decimal `json:"delivery_price,omitempty"`
}

// ZoneInput creates a delivery zone.
type ZoneInput struct {
	Name          string          `json:"name" validate:"required"`
	City          string          `json:"city" validate:"required"`
	Areas         []string        `json:"areas"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
}

// UpdateZoneInput patches a delivery zone.
type UpdateZoneInput struct {
	Name          *string          `json:"name,omitempty"`
	City          *string          `json:"city,omitempty"`
	Areas         []string         `json:"areas,omitempty"`
	DeliveryPrice *decimal.Decimal `json:"delivery_price,omitempty"`
}

// DriverInput creates a driver. A temporary password is generated when
// Password is empty.
type DriverInput struct {
	CompanyID   uuid.UUID `json:"company_id"`
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name" validate:"required"`
	LastName    string    `json:"last_name"`
	AvatarURL   string    `json:"avatar_url"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Country     string    `json:"country"`
	ZipCode     string    `json:"zip_code"`
}

// UpdateDriverInput patches a driver.
type UpdateDriverInput struct {
	Password    *string `json:"password,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Address     *string `json:"address,omitempty"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	Country     *string `json:"country,omitempty"`
	ZipCode     *string `json:"zip_code,omitempty"`
	Activated   *bool   `json:"activated,omitempty"`
}

// CreatedDriver is returned once at creation. TemporaryPassword is set only
// when the password was generated.
type CreatedDriver struct {
	Driver            *models.Driver `json:"driver"`
	TemporaryPassword string         `json:"temporary_password,omitempty"`
}
