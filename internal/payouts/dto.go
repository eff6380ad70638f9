package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/internal/balances"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// SendRequestInput asks for a payout of the tenant's current balance. The
// destination is a saved account or an inline account snapshot.
type SendRequestInput struct {
	Tenant          balances.Tenant
	PayoutAccountID *uuid.UUID
	PayoutAccount   *types.PayoutAccountSnapshot
}

// ListFilter narrows the payout request listing.
type ListFilter struct {
	Tenant *balances.Tenant
	Status *enums.PayoutStatus
	Code   string
}

// StatsFilter scopes Stats to a tenant and a request window.
type StatsFilter struct {
	Tenant *balances.Tenant
	From   *time.Time
	To     *time.Time
}

// Stats splits request totals by outcome.
type Stats struct {
	Pending  types.Balance `json:"pending"`
	Approved types.Balance `json:"approved"`
}

// Account types accepted for payout destinations.
const (
	AccountTypeBank        = "bank-account"
	AccountTypePaypal      = "paypal"
	AccountTypeMobileMoney = "mobile-money"
)

// CreateAccountInput describes a payout destination.
type CreateAccountInput struct {
	Type          string `json:"type" validate:"required,oneof=bank-account paypal mobile-money"`
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	BranchCode    string `json:"branch_code"`
	PaypalAccount string `json:"paypal_account" validate:"omitempty,email"`
	PhoneNumber   string `json:"phone_number"`
}

// itemTypeOrder marks payout items that settle an order detail.
const itemTypeOrder = "order"
