package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/balances"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/redis"
	"github.com/bazaarhq/bazaar-backend/pkg/security"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type payoutMetrics interface {
	PayoutTransition(tenantType, status string)
	PayoutSettled(tenantType string, balance decimal.Decimal)
}

const (
	msgStatusInvalid   = "Payout request status is invalid"
	msgMaxAttempts     = "Send request reach max attempts today"
	msgBalanceTooSmall = "Balance is not enough for payout request"
)

// Service runs the payout request workflow: request, approve, reject.
type Service struct {
	tx      txRunner
	repo    Repository
	agg     *balances.Aggregator
	locker  redis.Locker
	outbox  outboxPublisher
	metrics payoutMetrics
	cfg     config.PayoutConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the payout service. locker and metrics may be nil; without
// a locker concurrent requests for one tenant rely on the claim check alone.
func NewService(
	tx txRunner,
	repo Repository,
	agg *balances.Aggregator,
	locker redis.Locker,
	publisher outboxPublisher,
	metrics payoutMetrics,
	cfg config.PayoutConfig,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if agg == nil {
		return nil, fmt.Errorf("balance aggregator required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.MaxRequestsPerDay <= 0 {
		return nil, fmt.Errorf("max payout requests per day must be positive")
	}
	if cfg.RequestWindow <= 0 {
		cfg.RequestWindow = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Service{
		tx:      tx,
		repo:    repo,
		agg:     agg,
		locker:  locker,
		outbox:  publisher,
		metrics: metrics,
		cfg:     cfg,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Balance returns the tenant's current payable balance.
func (s *Service) Balance(ctx context.Context, tenant balances.Tenant) (types.Balance, error) {
	if err := tenant.Validate(); err != nil {
		return types.Balance{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	balance, err := s.agg.Calculate(ctx, tenant)
	if err != nil {
		return types.Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calculate balance")
	}
	return balance, nil
}

// SendRequest snapshots the tenant's balance into a pending payout request and
// claims every eligible order detail for it. A tenant keeps at most one
// pending request; resending refreshes it and counts an attempt.
func (s *Service) SendRequest(ctx context.Context, input SendRequestInput) (*models.PayoutRequest, error) {
	tenant := input.Tenant
	if err := tenant.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	var request *models.PayoutRequest
	run := func(ctx context.Context) error {
		var err error
		request, err = s.sendRequest(ctx, input)
		return err
	}

	var err error
	if s.locker != nil {
		name := fmt.Sprintf("payout:%s:%s", tenant.Type, tenant.ID)
		err = redis.WithLock(ctx, s.locker, name, uuid.NewString(), s.cfg.LockTTL, run)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payout request for this account is already being processed")
		case errors.Is(err, redis.ErrLockUnavailable):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PayoutTransition(string(tenant.Type), string(enums.PayoutStatusPending))
	}
	if s.logg != nil {
		logCtx := s.logg.WithTenant(ctx, string(tenant.Type), tenant.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payout_request_id": request.ID.String(),
			"code":              request.Code,
			"attempts":          request.RequestAttempts,
			"balance":           request.Balance.StringFixed(2),
		})
		s.logg.Info(logCtx, "payout request sent")
	}
	return request, nil
}

func (s *Service) sendRequest(ctx context.Context, input SendRequestInput) (*models.PayoutRequest, error) {
	tenant := input.Tenant
	var request *models.PayoutRequest

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		exists, err := repo.TenantExists(ctx, tenant)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, tenantNotFound(tenant.Type))
		}

		account, err := s.resolveAccount(ctx, repo, input)
		if err != nil {
			return err
		}

		pending, err := repo.FindPendingRequest(ctx, tenant)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending payout request")
		}

		if pending != nil {
			if now.Sub(pending.UpdatedAt) < s.cfg.RequestWindow {
				if pending.RequestAttempts >= s.cfg.MaxRequestsPerDay {
					return pkgerrors.New(pkgerrors.CodeRateLimit, msgMaxAttempts)
				}
				pending.RequestAttempts++
			} else {
				pending.RequestAttempts = 1
			}
			request = pending
		} else {
			code, err := security.PayoutRequestCode(now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payout code")
			}
			request = &models.PayoutRequest{
				TenantType:      tenant.Type,
				TenantID:        tenant.ID,
				Code:            code,
				Status:          enums.PayoutStatusPending,
				RequestAttempts: 1,
			}
		}

		agg := s.agg.WithTx(tx)
		balance, err := agg.Calculate(ctx, tenant)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calculate balance")
		}
		if !balance.Balance.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, msgBalanceTooSmall)
		}
		details, err := agg.EligibleDetails(ctx, tenant)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligible order details")
		}
		if len(details) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, msgBalanceTooSmall)
		}

		request.RequestToTime = now
		request.Total = balance.TotalPrice
		request.Commission = balance.Commission
		request.Balance = balance.Balance
		request.SiteBalance = balance.Commission
		request.TotalProduct = balance.TotalProduct
		request.TotalOrder = balance.TotalOrder
		request.Details = balance
		if account != nil {
			request.PayoutAccount = account
		}
		if err := repo.SaveRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout request")
		}

		items, ids := buildItems(request, details)
		if _, err := repo.ReleaseClaims(ctx, tenant.Type, request.ID, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stale claims")
		}
		if err := repo.ReplaceItems(ctx, request.ID, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout items")
		}
		claimed, err := repo.ClaimDetails(ctx, tenant.Type, request.ID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order details")
		}
		if claimed != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order details are already claimed by another payout request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregatePayoutRequest,
			AggregateID:   request.ID,
			Actor:         tenantActor(tenant),
			OccurredAt:    now,
			Data: payloads.PayoutRequestedEvent{
				PayoutRequestID: request.ID,
				Code:            request.Code,
				TenantType:      request.TenantType,
				TenantID:        request.TenantID,
				Total:           request.Total,
				Commission:      request.Commission,
				Balance:         request.Balance,
				TotalOrder:      request.TotalOrder,
				RequestAttempts: request.RequestAttempts,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Service) resolveAccount(ctx context.Context, repo Repository, input SendRequestInput) (*types.PayoutAccountSnapshot, error) {
	if input.PayoutAccountID != nil {
		account, err := repo.FindAccount(ctx, input.Tenant, *input.PayoutAccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Payout account not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout account")
		}
		return account.Snapshot(), nil
	}
	if input.PayoutAccount != nil {
		if strings.TrimSpace(input.PayoutAccount.Type) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout account type is required")
		}
		snapshot := *input.PayoutAccount
		return &snapshot, nil
	}
	return nil, nil
}

func buildItems(request *models.PayoutRequest, details []models.OrderDetail) ([]models.PayoutItem, []uuid.UUID) {
	items := make([]models.PayoutItem, 0, len(details))
	ids := make([]uuid.UUID, 0, len(details))
	for _, detail := range details {
		item := models.PayoutItem{
			RequestID:  request.ID,
			TenantType: request.TenantType,
			TenantID:   request.TenantID,
			ItemType:   itemTypeOrder,
			ItemID:     detail.ID,
			Status:     enums.PayoutStatusPending,
		}
		if request.TenantType == enums.TenantTypeDelivery {
			item.Total = detail.DeliveryPrice
			item.Commission = detail.DeliveryCommission
			item.Balance = detail.DeliveryBalance
		} else {
			item.Total = detail.TotalPrice
			item.Commission = detail.Commission
			item.Balance = detail.Balance
		}
		items = append(items, item)
		ids = append(ids, detail.ID)
	}
	return items, ids
}

// Approve settles every claimed order detail and marks the request approved.
// A rejected request re-claims its order details first and fails with a
// conflict when any of them was settled or claimed by another request since.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	request, err := s.decide(ctx, id, enums.PayoutStatusApproved, nil, note, actor)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PayoutTransition(string(request.TenantType), string(enums.PayoutStatusApproved))
		s.metrics.PayoutSettled(string(request.TenantType), request.Balance)
	}
	return request, nil
}

// Reject releases the claimed order details so they count toward the
// tenant's balance again.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reject reason is required")
	}
	request, err := s.decide(ctx, id, enums.PayoutStatusRejected, &reason, note, actor)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PayoutTransition(string(request.TenantType), string(enums.PayoutStatusRejected))
	}
	return request, nil
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, status enums.PayoutStatus, reason, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	var request *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		var err error
		request, err = repo.FindRequest(ctx, id)
		if err != nil {
			return mapNotFound(err, "Request not found", "load payout request")
		}
		from := request.Status
		if !from.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, msgStatusInvalid)
		}

		updates := map[string]any{"reject_reason": nil}
		if reason != nil {
			updates["reject_reason"] = *reason
		}
		if note != nil {
			updates["note"] = *note
		}
		moved, err := repo.TransitionRequest(ctx, request.ID, from, status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout request")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, msgStatusInvalid)
		}
		request.Status = status
		request.RejectReason = reason
		if note != nil {
			request.Note = note
		}

		if err := repo.UpdateItemsStatus(ctx, request.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout items")
		}

		if status == enums.PayoutStatusApproved {
			items, err := repo.ListItems(ctx, request.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout items")
			}
			if from == enums.PayoutStatusRejected {
				if err := reclaim(ctx, repo, request, items); err != nil {
					return err
				}
			}
			settled, err := repo.SettleClaims(ctx, request.TenantType, request.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle order details")
			}
			if settled != int64(len(items)) {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "payout request covers %d order details but %d were settled", len(items), settled)
			}
		} else {
			if _, err := repo.ReleaseClaims(ctx, request.TenantType, request.ID, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release order details")
			}
		}

		eventType := enums.EventPayoutApproved
		if status == enums.PayoutStatusRejected {
			eventType = enums.EventPayoutRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayoutRequest,
			AggregateID:   request.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.PayoutDecidedEvent{
				PayoutRequestID: request.ID,
				Code:            request.Code,
				TenantType:      request.TenantType,
				TenantID:        request.TenantID,
				Status:          status,
				Total:           request.Total,
				Commission:      request.Commission,
				Balance:         request.Balance,
				TotalProduct:    request.TotalProduct,
				TotalOrder:      request.TotalOrder,
				RejectReason:    reason,
				Note:            request.Note,
				DecidedAt:       now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithTenant(ctx, string(request.TenantType), request.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payout_request_id": request.ID.String(),
			"status":            string(status),
		})
		s.logg.Info(logCtx, "payout request decided")
	}
	return request, nil
}

// reclaim points a rejected request's order details back at it. Rows that
// were settled or claimed by a newer request in the meantime abort the
// approval.
func reclaim(ctx context.Context, repo Repository, request *models.PayoutRequest, items []models.PayoutItem) error {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ItemType == itemTypeOrder {
			ids = append(ids, item.ItemID)
		}
	}
	claimed, err := repo.ClaimDetails(ctx, request.TenantType, request.ID, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reclaim order details")
	}
	if claimed != int64(len(ids)) {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "%d of %d order details are no longer available for this payout request", int64(len(ids))-claimed, len(ids))
	}
	return nil
}

// Get loads a request. A non-nil tenant restricts access to its own requests.
func (s *Service) Get(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) (*models.PayoutRequest, error) {
	request, err := s.repo.FindRequest(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "Request not found", "load payout request")
	}
	if tenant != nil && (request.TenantType != tenant.Type || request.TenantID != tenant.ID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payout request belongs to another account")
	}
	return request, nil
}

// Items returns the order details a request covers.
func (s *Service) Items(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) ([]models.OrderDetail, error) {
	if _, err := s.Get(ctx, id, tenant); err != nil {
		return nil, err
	}
	details, err := s.repo.ItemDetails(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout items")
	}
	return details, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error) {
	page, err := s.repo.ListRequests(ctx, filter, params)
	switch {
	case errors.Is(err, pagination.ErrInvalidCursor):
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	case err != nil:
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout requests")
	}
	return page, nil
}

// Stats sums pending and approved requests.
func (s *Service) Stats(ctx context.Context, filter StatsFilter) (Stats, error) {
	pending, err := s.repo.SumRequests(ctx, enums.PayoutStatusPending, filter)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending payouts")
	}
	approved, err := s.repo.SumRequests(ctx, enums.PayoutStatusApproved, filter)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum approved payouts")
	}
	return Stats{Pending: pending, Approved: approved}, nil
}

func (s *Service) CreateAccount(ctx context.Context, tenant balances.Tenant, input CreateAccountInput) (*models.PayoutAccount, error) {
	if err := tenant.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	switch input.Type {
	case AccountTypeBank:
		if strings.TrimSpace(input.AccountNumber) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number is required")
		}
	case AccountTypePaypal:
		if strings.TrimSpace(input.PaypalAccount) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal account is required")
		}
	case AccountTypeMobileMoney:
		if strings.TrimSpace(input.PhoneNumber) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payout account type %q", input.Type)
	}

	account := &models.PayoutAccount{
		TenantType:    tenant.Type,
		TenantID:      tenant.ID,
		Type:          input.Type,
		AccountHolder: strings.TrimSpace(input.AccountHolder),
		AccountNumber: strings.TrimSpace(input.AccountNumber),
		BankName:      strings.TrimSpace(input.BankName),
		BranchCode:    strings.TrimSpace(input.BranchCode),
		PaypalAccount: strings.TrimSpace(input.PaypalAccount),
		PhoneNumber:   strings.TrimSpace(input.PhoneNumber),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout account")
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context, tenant balances.Tenant) ([]models.PayoutAccount, error) {
	accounts, err := s.repo.ListAccounts(ctx, tenant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout accounts")
	}
	return accounts, nil
}

func tenantNotFound(t enums.TenantType) string {
	if t == enums.TenantTypeDelivery {
		return "Company not found!"
	}
	return "Shop not found!"
}

func tenantActor(tenant balances.Tenant) *outbox.ActorRef {
	role := enums.ActorRoleShop
	if tenant.Type == enums.TenantTypeDelivery {
		role = enums.ActorRoleCompany
	}
	return &outbox.ActorRef{ID: tenant.ID, Role: role}
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
