package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Product is a shop listing. Orders copy what they need into a snapshot.
type Product struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShopID                uuid.UUID            `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	Name                  string               `gorm:"column:name;not null" json:"name"`
	SKU                   string               `gorm:"column:sku" json:"sku"`
	Type                  enums.ProductType    `gorm:"column:type;type:text;not null;default:'physical'" json:"type"`
	Price                 decimal.Decimal      `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	SalePrice             *decimal.Decimal     `gorm:"column:sale_price;type:numeric(14,2)" json:"sale_price,omitempty"`
	StockQuantity         int                  `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	TaxClass              string               `gorm:"column:tax_class" json:"tax_class"`
	TaxPercentage         decimal.Decimal      `gorm:"column:tax_percentage;type:numeric(5,2);not null;default:0" json:"tax_percentage"`
	FreeShip              bool                 `gorm:"column:free_ship;not null;default:false" json:"free_ship"`
	RestrictFreeShipAreas []types.FreeShipArea `gorm:"column:restrict_free_ship_areas;type:jsonb;serializer:json" json:"restrict_free_ship_areas,omitempty"`
	DigitalFileID         *uuid.UUID           `gorm:"column:digital_file_id;type:uuid" json:"digital_file_id,omitempty"`
	MainImageURL          string               `gorm:"column:main_image_url" json:"main_image_url"`
	IsActive              bool                 `gorm:"column:is_active;not null" json:"is_active"`
	CategoryID            *uuid.UUID           `gorm:"column:category_id;type:uuid;index" json:"category_id,omitempty"`
	Shop                  *Shop                `gorm:"foreignKey:ShopID" json:"shop,omitempty"`
	Category              *ProductCategory     `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductCategory groups products. FreeShip waives shipping for every
// product in it.
type ProductCategory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	FreeShip  bool      `gorm:"column:free_ship;not null;default:false" json:"free_ship"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *ProductCategory) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ProductVariant overrides price and stock for one option combination.
type ProductVariant struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Price         *decimal.Decimal  `gorm:"column:price;type:numeric(14,2)" json:"price,omitempty"`
	SalePrice     *decimal.Decimal  `gorm:"column:sale_price;type:numeric(14,2)" json:"sale_price,omitempty"`
	StockQuantity int               `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	Options       map[string]string `gorm:"column:options;type:jsonb;serializer:json" json:"options,omitempty"`
	DigitalFileID *uuid.UUID        `gorm:"column:digital_file_id;type:uuid" json:"digital_file_id,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// DigitalFile is the stored asset behind a digital product.
type DigitalFile struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	FilePath  string    `gorm:"column:file_path;not null" json:"file_path"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (f *DigitalFile) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// Snapshot freezes the product for an order detail.
func (p *Product) Snapshot() types.ProductSnapshot {
	return types.ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Type:          p.Type,
		SKU:           p.SKU,
		Price:         p.Price,
		SalePrice:     p.SalePrice,
		TaxClass:      p.TaxClass,
		TaxPercentage: p.TaxPercentage,
		FreeShip:      p.FreeShip,
		DigitalFileID: p.DigitalFileID,
		MainImageURL:  p.MainImageURL,
	}
}

// Snapshot freezes the variant for an order detail.
func (v *ProductVariant) Snapshot() *types.VariantSnapshot {
	options := make(map[string]string, len(v.Options))
	for k, val := range v.Options {
		options[k] = val
	}
	return &types.VariantSnapshot{
		ID:            v.ID,
		Price:         v.Price,
		SalePrice:     v.SalePrice,
		Options:       options,
		DigitalFileID: v.DigitalFileID,
	}
}
