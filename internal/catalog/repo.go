package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
)

// Repository reads the catalog rows an order is priced from and applies the
// stock and coupon side effects of checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindCoupon(ctx context.Context, shopID uuid.UUID, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error
	DecrementStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int) error
	FindDigitalFile(ctx context.Context, id uuid.UUID) (*models.DigitalFile, error)
	FindSetting(ctx context.Context, key string) (*models.SiteSetting, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Shop").
		Preload("Category").
		Where("id IN ?", ids).
		Where("is_active = ?", true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindCoupon(ctx context.Context, shopID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}

// DecrementStock lowers the variant stock when a variant was bought and the
// product stock otherwise. Stock never goes below zero.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	query := r.db.WithContext(ctx)
	expr := gorm.Expr("CASE WHEN stock_quantity > ? THEN stock_quantity - ? ELSE 0 END", quantity, quantity)
	if variantID != nil {
		return query.Model(&models.ProductVariant{}).
			Where("id = ?", *variantID).
			UpdateColumn("stock_quantity", expr).Error
	}
	return query.Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_quantity", expr).Error
}

func (r *repository) FindDigitalFile(ctx context.Context, id uuid.UUID) (*models.DigitalFile, error) {
	var file models.DigitalFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) FindSetting(ctx context.Context, key string) (*models.SiteSetting, error) {
	var setting models.SiteSetting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}
