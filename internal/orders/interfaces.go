package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateDetails(ctx context.Context, details []models.OrderDetail) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByTrackingCode(ctx context.Context, code string) (*models.Order, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error)
	FindDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateDetail(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateDetailsByOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	CreateLog(ctx context.Context, log *models.OrderLog) error
	ListLogs(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error)
	CreateRefundRequest(ctx context.Context, request *models.RefundRequest) error
	HasRefundRequest(ctx context.Context, detailID uuid.UUID) (bool, error)
	ListOrders(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Order], error)
	SaleStats(ctx context.Context, filter SaleStatsFilter) (*SaleStats, error)
}
