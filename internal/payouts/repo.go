package payouts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/balances"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Repository persists payout requests, their items and the claim columns on
// order_details.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	TenantExists(ctx context.Context, tenant balances.Tenant) (bool, error)
	FindPendingRequest(ctx context.Context, tenant balances.Tenant) (*models.PayoutRequest, error)
	FindRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	SaveRequest(ctx context.Context, request *models.PayoutRequest) error
	TransitionRequest(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, updates map[string]any) (bool, error)
	ReplaceItems(ctx context.Context, requestID uuid.UUID, items []models.PayoutItem) error
	ListItems(ctx context.Context, requestID uuid.UUID) ([]models.PayoutItem, error)
	UpdateItemsStatus(ctx context.Context, requestID uuid.UUID, status enums.PayoutStatus) error
	ItemDetails(ctx context.Context, requestID uuid.UUID) ([]models.OrderDetail, error)
	ClaimDetails(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID, ids []uuid.UUID) (int64, error)
	ReleaseClaims(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID, keep []uuid.UUID) (int64, error)
	SettleClaims(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID) (int64, error)
	ListRequests(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error)
	SumRequests(ctx context.Context, status enums.PayoutStatus, filter StatsFilter) (types.Balance, error)
	CreateAccount(ctx context.Context, account *models.PayoutAccount) error
	FindAccount(ctx context.Context, tenant balances.Tenant, id uuid.UUID) (*models.PayoutAccount, error)
	ListAccounts(ctx context.Context, tenant balances.Tenant) ([]models.PayoutAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) TenantExists(ctx context.Context, tenant balances.Tenant) (bool, error) {
	var model any
	switch tenant.Type {
	case enums.TenantTypeShop:
		model = &models.Shop{}
	case enums.TenantTypeDelivery:
		model = &models.Company{}
	default:
		return false, fmt.Errorf("invalid tenant type %q", tenant.Type)
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", tenant.ID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindPendingRequest(ctx context.Context, tenant balances.Tenant) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("tenant_type = ? AND tenant_id = ?", tenant.Type, tenant.ID).
		Where("status = ?", enums.PayoutStatusPending).
		Order("updated_at DESC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) SaveRequest(ctx context.Context, request *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// TransitionRequest moves a request from one status to another only if it is
// still in from. It reports whether the row changed.
func (r *repository) TransitionRequest(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReplaceItems(ctx context.Context, requestID uuid.UUID, items []models.PayoutItem) error {
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Delete(&models.PayoutItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ListItems(ctx context.Context, requestID uuid.UUID) ([]models.PayoutItem, error) {
	var items []models.PayoutItem
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateItemsStatus(ctx context.Context, requestID uuid.UUID, status enums.PayoutStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("request_id = ?", requestID).
		Update("status", status).Error
}

func (r *repository) ItemDetails(ctx context.Context, requestID uuid.UUID) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.PayoutItem{}).Select("item_id").Where("request_id = ? AND item_type = ?", requestID, itemTypeOrder)).
		Order("created_at ASC, id ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ClaimDetails points unsettled, unclaimed rows at requestID. Rows already
// held by another request are skipped, so the count tells the caller whether
// every row was claimed.
func (r *repository) ClaimDetails(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cols, err := balances.ColumnsFor(tenantType)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id IN ?", ids).
		Where(cols.Settled+" = ?", false).
		Where("("+cols.Request+" IS NULL OR "+cols.Request+" = ?)", requestID).
		UpdateColumn(cols.Request, requestID)
	return res.RowsAffected, res.Error
}

// ReleaseClaims clears requestID from unsettled rows outside keep.
func (r *repository) ReleaseClaims(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID, keep []uuid.UUID) (int64, error) {
	cols, err := balances.ColumnsFor(tenantType)
	if err != nil {
		return 0, err
	}
	query := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where(cols.Request+" = ?", requestID).
		Where(cols.Settled+" = ?", false)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	res := query.UpdateColumn(cols.Request, nil)
	return res.RowsAffected, res.Error
}

// SettleClaims flips the payout flag on every row claimed by requestID.
func (r *repository) SettleClaims(ctx context.Context, tenantType enums.TenantType, requestID uuid.UUID) (int64, error) {
	cols, err := balances.ColumnsFor(tenantType)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where(cols.Request+" = ?", requestID).
		Where(cols.Settled+" = ?", false).
		UpdateColumn(cols.Settled, true)
	return res.RowsAffected, res.Error
}

func (r *repository) ListRequests(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error) {
	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if filter.Tenant != nil {
		query = query.Where("tenant_type = ? AND tenant_id = ?", filter.Tenant.Type, filter.Tenant.ID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("code LIKE ?", "%"+code+"%")
	}
	return pagination.Fetch(query, params, func(p models.PayoutRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
}

type sumsRow struct {
	Total        *string
	Commission   *string
	Balance      *string
	TotalProduct int64
	TotalOrder   int64
}

func (r *repository) SumRequests(ctx context.Context, status enums.PayoutStatus, filter StatsFilter) (types.Balance, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Select(`CAST(COALESCE(SUM(total), 0) AS TEXT) AS total,
CAST(COALESCE(SUM(commission), 0) AS TEXT) AS commission,
CAST(COALESCE(SUM(balance), 0) AS TEXT) AS balance,
COALESCE(SUM(total_product), 0) AS total_product,
COALESCE(SUM(total_order), 0) AS total_order`).
		Where("status = ?", status)
	if filter.Tenant != nil {
		query = query.Where("tenant_type = ? AND tenant_id = ?", filter.Tenant.Type, filter.Tenant.ID)
	}
	if filter.From != nil {
		query = query.Where("request_to_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("request_to_time <= ?", *filter.To)
	}

	var row sumsRow
	if err := query.Scan(&row).Error; err != nil {
		return types.Balance{}, err
	}
	out := types.Balance{TotalProduct: row.TotalProduct, TotalOrder: row.TotalOrder}
	var err error
	if out.TotalPrice, err = parseSum(row.Total); err != nil {
		return types.Balance{}, err
	}
	if out.Commission, err = parseSum(row.Commission); err != nil {
		return types.Balance{}, err
	}
	if out.Balance, err = parseSum(row.Balance); err != nil {
		return types.Balance{}, err
	}
	return out, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.PayoutAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, tenant balances.Tenant, id uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_type = ? AND tenant_id = ?", id, tenant.Type, tenant.ID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListAccounts(ctx context.Context, tenant balances.Tenant) ([]models.PayoutAccount, error) {
	var accounts []models.PayoutAccount
	err := r.db.WithContext(ctx).
		Where("tenant_type = ? AND tenant_id = ?", tenant.Type, tenant.ID).
		Order("created_at DESC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func parseSum(value *string) (decimal.Decimal, error) {
	if value == nil || *value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse aggregate %q: %w", *value, err)
	}
	return d.Round(2), nil
}
