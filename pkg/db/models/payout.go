package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// PayoutRequest snapshots a tenant's payable balance at request time.
type PayoutRequest struct {
	ID              uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantType      enums.TenantType             `gorm:"column:tenant_type;type:text;not null;index:idx_payout_requests_tenant" json:"tenant_type"`
	TenantID        uuid.UUID                    `gorm:"column:tenant_id;type:uuid;not null;index:idx_payout_requests_tenant" json:"tenant_id"`
	Code            string                       `gorm:"column:code;not null;uniqueIndex" json:"code"`
	RequestToTime   time.Time                    `gorm:"column:request_to_time;not null" json:"request_to_time"`
	Total           decimal.Decimal              `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	Commission      decimal.Decimal              `gorm:"column:commission;type:numeric(14,2);not null" json:"commission"`
	Balance         decimal.Decimal              `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	SiteBalance     decimal.Decimal              `gorm:"column:site_balance;type:numeric(14,2);not null" json:"site_balance"`
	TotalProduct    int64                        `gorm:"column:total_product;not null" json:"total_product"`
	TotalOrder      int64                        `gorm:"column:total_order;not null" json:"total_order"`
	RequestAttempts int                          `gorm:"column:request_attempts;not null" json:"request_attempts"`
	Status          enums.PayoutStatus           `gorm:"column:status;type:text;not null;index" json:"status"`
	PayoutAccount   *types.PayoutAccountSnapshot `gorm:"column:payout_account;type:jsonb;serializer:json" json:"payout_account,omitempty"`
	Details         types.Balance                `gorm:"column:details;type:jsonb;serializer:json" json:"details"`
	RejectReason    *string                      `gorm:"column:reject_reason" json:"reject_reason,omitempty"`
	Note            *string                      `gorm:"column:note" json:"note,omitempty"`
	CreatedAt       time.Time                    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *PayoutRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// PayoutItem links a request to one settled order detail. Its status mirrors
// the parent request.
type PayoutItem struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID          `gorm:"column:request_id;type:uuid;not null;index" json:"request_id"`
	TenantType enums.TenantType   `gorm:"column:tenant_type;type:text;not null" json:"tenant_type"`
	TenantID   uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null" json:"tenant_id"`
	ItemType   string             `gorm:"column:item_type;not null" json:"item_type"`
	ItemID     uuid.UUID          `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	Total      decimal.Decimal    `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	Commission decimal.Decimal    `gorm:"column:commission;type:numeric(14,2);not null" json:"commission"`
	Balance    decimal.Decimal    `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	Status     enums.PayoutStatus `gorm:"column:status;type:text;not null" json:"status"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *PayoutItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// PayoutAccount is a saved payout destination for a tenant.
type PayoutAccount struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantType    enums.TenantType `gorm:"column:tenant_type;type:text;not null;index:idx_payout_accounts_tenant" json:"tenant_type"`
	TenantID      uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index:idx_payout_accounts_tenant" json:"tenant_id"`
	Type          string           `gorm:"column:type;not null" json:"type"`
	AccountHolder string           `gorm:"column:account_holder" json:"account_holder"`
	AccountNumber string           `gorm:"column:account_number" json:"account_number"`
	BankName      string           `gorm:"column:bank_name" json:"bank_name"`
	BranchCode    string           `gorm:"column:branch_code" json:"branch_code"`
	PaypalAccount string           `gorm:"column:paypal_account" json:"paypal_account"`
	PhoneNumber   string           `gorm:"column:phone_number" json:"phone_number"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (a *PayoutAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Snapshot copies the account onto a payout request.
func (a *PayoutAccount) Snapshot() *types.PayoutAccountSnapshot {
	return &types.PayoutAccountSnapshot{
		Type:          a.Type,
		AccountHolder: a.AccountHolder,
		AccountNumber: a.AccountNumber,
		BankName:      a.BankName,
		BranchCode:    a.BranchCode,
		PaypalAccount: a.PaypalAccount,
		PhoneNumber:   a.PhoneNumber,
	}
}
