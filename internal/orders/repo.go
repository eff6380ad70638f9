package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Details").Create(order).Error
}

func (r *repository) CreateDetails(ctx context.Context, details []models.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Details").
		Where("tracking_code = ?", code).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&detail).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *repository) FindDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.updateOne(ctx, &models.Order{}, id, updates)
}

func (r *repository) UpdateDetail(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.updateOne(ctx, &models.OrderDetail{}, id, updates)
}

func (r *repository) updateOne(ctx context.Context, model any, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateDetailsByOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) CreateLog(ctx context.Context, log *models.OrderLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) ListLogs(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error) {
	var logs []models.OrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) CreateRefundRequest(ctx context.Context, request *models.RefundRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) HasRefundRequest(ctx context.Context, detailID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("order_detail_id = ?", detailID).
		Count(&count).Error
	return count > 0, err
}

// ListOrders pages orders newest first using a (created_at, id) cursor.
func (r *repository) ListOrders(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Order], error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ShopID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.OrderDetail{}).Select("order_id").Where("shop_id = ?", *filter.ShopID))
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.TrackingCode != "" {
		query = query.Where("tracking_code = ?", filter.TrackingCode)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	return pagination.Fetch(query, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}

type saleStatsRow struct {
	TotalPrice   *string
	Commission   *string
	Balance      *string
	TotalProduct int64
	TotalOrder   int64
}

func (r *repository) SaleStats(ctx context.Context, filter SaleStatsFilter) (*SaleStats, error) {
	query := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Select(`CAST(COALESCE(SUM(total_price), 0) AS TEXT) AS total_price,
CAST(COALESCE(SUM(commission), 0) AS TEXT) AS commission,
CAST(COALESCE(SUM(balance), 0) AS TEXT) AS balance,
COALESCE(SUM(quantity), 0) AS total_product,
COUNT(*) AS total_order`).
		Where("status = ?", enums.OrderStatusCompleted)
	if filter.ShopID != nil {
		query = query.Where("shop_id = ?", *filter.ShopID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	var row saleStatsRow
	if err := query.Scan(&row).Error; err != nil {
		return nil, err
	}
	stats := &SaleStats{TotalProduct: row.TotalProduct, TotalOrder: row.TotalOrder}
	var err error
	if stats.TotalPrice, err = parseSum(row.TotalPrice); err != nil {
		return nil, err
	}
	if stats.Commission, err = parseSum(row.Commission); err != nil {
		return nil, err
	}
	if stats.Balance, err = parseSum(row.Balance); err != nil {
		return nil, err
	}
	return stats, nil
}

func parseSum(value *string) (decimal.Decimal, error) {
	if value == nil || *value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return decimal.Zero, errors.Join(fmt.Errorf("parse aggregate %q", *value), err)
	}
	return d.Round(2), nil
}
