// Package balances sums the order details a tenant can still be paid for.
package balances

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Tenant is a payable party: a shop or a delivery company.
type Tenant struct {
	Type enums.TenantType `json:"type"`
	ID   uuid.UUID        `json:"id"`
}

// Validate rejects unknown tenant types and empty ids.
func (t Tenant) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("invalid tenant type %q", t.Type)
	}
	if t.ID == uuid.Nil {
		return fmt.Errorf("tenant id required")
	}
	return nil
}

// columns maps a tenant type to the order_details columns that drive its balance.
type columns struct {
	tenant     string
	status     string
	settled    string
	request    string
	total      string
	commission string
	balance    string
	eligible   string
}

var tenantColumns = map[enums.TenantType]columns{
	enums.TenantTypeShop: {
		tenant:     "shop_id",
		status:     "status",
		settled:    "complete_payout",
		request:    "payout_request_id",
		total:      "total_price",
		commission: "commission",
		balance:    "balance",
		eligible:   string(enums.OrderStatusCompleted),
	},
	enums.TenantTypeDelivery: {
		tenant:     "delivery_company_id",
		status:     "delivery_status",
		settled:    "delivery_complete_payout",
		request:    "delivery_payout_request_id",
		total:      "delivery_price",
		commission: "delivery_commission",
		balance:    "delivery_balance",
		eligible:   string(enums.DeliveryStatusDelivered),
	},
}

// Columns names the order_details columns used to claim and settle rows for
// a tenant type.
type Columns struct {
	Settled string
	Request string
	Balance string
}

// ColumnsFor returns the claim columns for t.
func ColumnsFor(t enums.TenantType) (Columns, error) {
	cols, ok := tenantColumns[t]
	if !ok {
		return Columns{}, fmt.Errorf("invalid tenant type %q", t)
	}
	return Columns{Settled: cols.settled, Request: cols.request, Balance: cols.balance}, nil
}

// Aggregator computes balances over unsettled, fulfilled order details.
type Aggregator struct {
	db *gorm.DB
}

// NewAggregator builds an aggregator bound to db.
func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// WithTx binds the aggregator to a transaction.
func (a *Aggregator) WithTx(tx *gorm.DB) *Aggregator {
	if tx == nil {
		return a
	}
	return &Aggregator{db: tx}
}

func (a *Aggregator) eligible(ctx context.Context, tenant Tenant) (*gorm.DB, columns, error) {
	if err := tenant.Validate(); err != nil {
		return nil, columns{}, err
	}
	cols := tenantColumns[tenant.Type]
	query := a.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where(cols.tenant+" = ?", tenant.ID).
		Where(cols.status+" = ?", cols.eligible).
		Where(cols.settled+" = ?", false)
	return query, cols, nil
}

type sumsRow struct {
	TotalPrice   *string
	Commission   *string
	Balance      *string
	TotalProduct int64
	TotalOrder   int64
}

// Calculate sums the tenant's eligible rows. No rows yields zeros.
func (a *Aggregator) Calculate(ctx context.Context, tenant Tenant) (types.Balance, error) {
	query, cols, err := a.eligible(ctx, tenant)
	if err != nil {
		return types.Balance{}, err
	}

	var row sumsRow
	err = query.Select(fmt.Sprintf(`CAST(COALESCE(SUM(%s), 0) AS TEXT) AS total_price,
CAST(COALESCE(SUM(%s), 0) AS TEXT) AS commission,
CAST(COALESCE(SUM(%s), 0) AS TEXT) AS balance,
COALESCE(SUM(quantity), 0) AS total_product,
COUNT(*) AS total_order`, cols.total, cols.commission, cols.balance)).
		Scan(&row).Error
	if err != nil {
		return types.Balance{}, err
	}

	out := types.Balance{TotalProduct: row.TotalProduct, TotalOrder: row.TotalOrder}
	if out.TotalPrice, err = parseSum(row.TotalPrice); err != nil {
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

// EligibleDetails returns the rows Calculate sums, oldest first.
func (a *Aggregator) EligibleDetails(ctx context.Context, tenant Tenant) ([]models.OrderDetail, error) {
	query, _, err := a.eligible(ctx, tenant)
	if err != nil {
		return nil, err
	}
	var details []models.OrderDetail
	if err := query.Order("created_at ASC, id ASC").Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
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
