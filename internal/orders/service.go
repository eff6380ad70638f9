package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/catalog"
	"github.com/bazaarhq/bazaar-backend/internal/pricing"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogService interface {
	Repository() catalog.Repository
	GetCommission(ctx context.Context) decimal.Decimal
	ShopCommission(ctx context.Context, shop *models.Shop) decimal.Decimal
	CheckValid(ctx context.Context, repo catalog.Repository, shopID uuid.UUID, code string) (*models.Coupon, error)
	DigitalFile(ctx context.Context, id uuid.UUID) (*models.DigitalFile, error)
}

// deliveryLookup resolves the delivery company and zone chosen for a line.
type deliveryLookup interface {
	FindCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	FindZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
}

type orderMetrics interface {
	OrderCreated(paymentMethod, currency string, total decimal.Decimal)
}

// Config bundles the settings the order service reads.
type Config struct {
	Pricing config.PricingConfig
	Digital config.DigitalConfig
	BaseURL string
}

// Service owns order creation, payment confirmation and detail lifecycle.
type Service struct {
	tx       txRunner
	repo     Repository
	catalog  catalogService
	delivery deliveryLookup
	outbox   outboxPublisher
	metrics  orderMetrics
	cfg      Config
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service. metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	catalogSvc catalogService,
	delivery deliveryLookup,
	publisher outboxPublisher,
	metrics orderMetrics,
	cfg Config,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery lookup required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if strings.TrimSpace(cfg.Pricing.SiteCurrency) == "" {
		return nil, fmt.Errorf("site currency required")
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		catalog:  catalogSvc,
		delivery: delivery,
		outbox:   publisher,
		metrics:  metrics,
		cfg:      cfg,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// resolvedLine is a requested line with its catalog and delivery rows loaded.
type resolvedLine struct {
	input   CreateOrderLine
	product *models.Product
	variant *models.ProductVariant
	company *models.Company
	zone    *models.DeliveryZone
}

// Create prices every line and persists the order with its details in one
// transaction. Lines whose variant is out of stock are dropped; an order
// left with no lines is still recorded, with zero totals.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No products")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each product requires an id and a positive quantity")
		}
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.PaymentMethodCOD
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}

	lines, err := s.resolveLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	exchangeRate := decimal.NewFromInt(1)
	if input.CurrencyExchangeRate != nil && input.CurrencyExchangeRate.IsPositive() {
		exchangeRate = *input.CurrencyExchangeRate
	}
	userCurrency := strings.TrimSpace(input.UserCurrency)
	if userCurrency == "" {
		userCurrency = s.cfg.Pricing.SiteCurrency
	}

	trackingCode, err := security.GenerateTrackingCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate tracking code")
	}

	order := &models.Order{
		ID:                   uuid.New(),
		CustomerID:           input.CustomerID,
		TrackingCode:         trackingCode,
		Currency:             s.cfg.Pricing.SiteCurrency,
		UserCurrency:         userCurrency,
		CurrencyExchangeRate: exchangeRate,
		PaymentMethod:        input.PaymentMethod,
		PaymentStatus:        enums.PaymentStatusPending,
		FirstName:            input.FirstName,
		LastName:             input.LastName,
		Email:                strings.TrimSpace(input.Email),
		PhoneNumber:          input.PhoneNumber,
		StreetAddress:        input.StreetAddress,
		ShippingAddress:      input.ShippingAddress,
		City:                 input.City,
		State:                input.State,
		Country:              input.Country,
		ZipCode:              input.ZipCode,
		UserIP:               input.UserIP,
		UserAgent:            input.UserAgent,
		CreatedAt:            s.now(),
	}
	destination := pricing.Destination{
		ZipCode: input.ZipCode,
		City:    input.City,
		State:   input.State,
		Country: input.Country,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogRepo := s.catalog.Repository().WithTx(tx)

		details := make([]models.OrderDetail, 0, len(lines))
		var totals pricing.Totals
		for _, line := range lines {
			detail, err := s.buildDetail(ctx, catalogRepo, order, line, destination)
			if err != nil {
				return err
			}
			totals = totals.Add(pricing.Line{TotalPrice: detail.TotalPrice}, detail.Quantity)
			details = append(details, *detail)
		}

		order.TotalPrice = totals.TotalPrice
		order.TotalProducts = totals.TotalProducts
		order.UserTotalPrice = pricing.Round2(totals.TotalPrice.Mul(exchangeRate))

		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateDetails(ctx, details); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order details")
		}
		for _, detail := range details {
			if err := catalogRepo.DecrementStock(ctx, detail.ProductID, detail.ProductVariantID, detail.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
			}
		}
		order.Details = details

		if err := addLog(ctx, repo, LogEntry{
			OrderID:   order.ID,
			EventType: LogEventCreated,
			ChangedBy: order.CustomerID,
			NewData:   map[string]any{"total_price": order.TotalPrice.StringFixed(2), "details": len(details)},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         customerActor(order.CustomerID),
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrderCreated(string(order.PaymentMethod), order.Currency, order.TotalPrice)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"tracking_code": order.TrackingCode,
			"details":       len(order.Details),
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

// resolveLines loads products, variants and delivery rows before the write
// transaction opens. Unknown products, exhausted variants and unknown
// delivery rows never fail the order.
func (s *Service) resolveLines(ctx context.Context, requested []CreateOrderLine) ([]resolvedLine, error) {
	catalogRepo := s.catalog.Repository()

	ids := make([]uuid.UUID, 0, len(requested))
	seen := make(map[uuid.UUID]struct{}, len(requested))
	for _, line := range requested {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	products, err := catalogRepo.FindActiveProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	if len(products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	resolved := make([]resolvedLine, 0, len(requested))
	for _, line := range requested {
		product, ok := byID[line.ProductID]
		if !ok || product.Shop == nil {
			continue
		}
		out := resolvedLine{input: line, product: product}

		if line.ProductVariantID != nil {
			variant, err := catalogRepo.FindVariant(ctx, *line.ProductVariantID)
			switch {
			case err == nil:
				if variant.ProductID == product.ID {
					if variant.StockQuantity <= 0 {
						continue
					}
					out.variant = variant
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
			}
		}

		if line.DeliveryCompanyID != nil && line.DeliveryZoneID != nil {
			company, zone, err := s.resolveDelivery(ctx, *line.DeliveryCompanyID, *line.DeliveryZoneID)
			if err != nil {
				return nil, err
			}
			out.company = company
			out.zone = zone
		}
		resolved = append(resolved, out)
	}
	return resolved, nil
}

func (s *Service) resolveDelivery(ctx context.Context, companyID, zoneID uuid.UUID) (*models.Company, *models.DeliveryZone, error) {
	company, err := s.delivery.FindCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery company")
	}
	zone, err := s.delivery.FindZone(ctx, zoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return company, nil, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery zone")
	}
	if zone.CompanyID != company.ID {
		return company, nil, nil
	}
	return company, zone, nil
}

func (s *Service) buildDetail(ctx context.Context, catalogRepo catalog.Repository, order *models.Order, line resolvedLine, dest pricing.Destination) (*models.OrderDetail, error) {
	product := line.product
	shop := product.Shop

	in := pricing.LineInput{
		Quantity:       line.input.Quantity,
		Price:          product.Price,
		SalePrice:      product.SalePrice,
		TaxPercentage:  product.TaxPercentage,
		CommissionRate: s.catalog.ShopCommission(ctx, shop),
		Shipping: pricing.Shipping{
			StoreWide:        shop.StoreWideShipping,
			DefaultPrice:     shop.ShippingDefaultPrice,
			PerQuantityPrice: shop.ShippingPerQuantityPrice,
			FreeShip:         product.FreeShip,
			CategoryFreeShip: product.Category != nil && product.Category.FreeShip,
			ShopFreeShip:     shop.FreeShip,
			FreeShipAreas:    product.RestrictFreeShipAreas,
		},
		Destination: dest,
	}
	if line.variant != nil {
		in.VariantPrice = line.variant.Price
		in.VariantSalePrice = line.variant.SalePrice
	}
	if line.company != nil && line.zone != nil {
		in.Delivery = &pricing.Delivery{
			ZonePrice:      line.zone.DeliveryPrice,
			SiteCommission: line.company.SiteCommission,
		}
	}

	var couponCode, couponName *string
	coupon, err := s.catalog.CheckValid(ctx, catalogRepo, shop.ID, line.input.CouponCode)
	if err != nil {
		return nil, err
	}
	if coupon != nil {
		in.DiscountPercentage = coupon.DiscountPercentage
		couponCode = &coupon.Code
		couponName = &coupon.Name
		if err := catalogRepo.IncrementCouponUsage(ctx, coupon.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon usage")
		}
	}

	priced := pricing.Price(in)

	trackingCode, err := security.GenerateTrackingCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate tracking code")
	}

	pickUpAddress := line.input.PickUpAddress
	if pickUpAddress == "" {
		pickUpAddress = shop.Address
	}

	detail := &models.OrderDetail{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		CustomerID:           order.CustomerID,
		ShopID:               shop.ID,
		ProductID:            product.ID,
		VariantOptions:       line.input.VariantOptions,
		TrackingCode:         trackingCode,
		Quantity:             line.input.Quantity,
		UnitPrice:            priced.UnitPrice,
		BasePrice:            priced.BasePrice,
		ProductPrice:         priced.ProductPrice,
		TaxClass:             product.TaxClass,
		TaxPercentage:        product.TaxPercentage,
		TaxPrice:             priced.TaxPrice,
		ShippingPrice:        priced.ShippingPrice,
		DeliveryPrice:        priced.DeliveryPrice,
		TotalPrice:           priced.TotalPrice,
		Currency:             order.Currency,
		UserCurrency:         order.UserCurrency,
		CurrencyExchangeRate: order.CurrencyExchangeRate,
		UserTotalPrice:       pricing.Round2(priced.TotalPrice.Mul(order.CurrencyExchangeRate)),
		DiscountPercentage:   in.DiscountPercentage,
		CouponCode:           couponCode,
		CouponName:           couponName,
		CommissionRate:       priced.CommissionRate,
		Commission:           priced.Commission,
		Balance:              priced.Balance,
		DeliveryCommission:   priced.DeliveryCommission,
		DeliveryBalance:      priced.DeliveryBalance,
		Status:               enums.OrderStatusPending,
		DeliveryStatus:       enums.DeliveryStatusProcessing,
		PaymentMethod:        order.PaymentMethod,
		PaymentStatus:        enums.PaymentStatusPending,
		UserNote:             line.input.UserNote,
		PickUpAtStore:        shop.PickUpAtStore,
		PickUpAddress:        pickUpAddress,
		FirstName:            order.FirstName,
		LastName:             order.LastName,
		Email:                order.Email,
		PhoneNumber:          order.PhoneNumber,
		StreetAddress:        order.StreetAddress,
		ShippingAddress:      order.ShippingAddress,
		City:                 order.City,
		State:                order.State,
		Country:              order.Country,
		ZipCode:              order.ZipCode,
		ProductDetails:       product.Snapshot(),
		ShopDetail:           shop.Snapshot(),
		CreatedAt:            order.CreatedAt,
	}
	if line.variant != nil {
		detail.ProductVariantID = &line.variant.ID
		detail.VariantDetails = line.variant.Snapshot()
	}
	if line.company != nil {
		companyID := line.company.ID
		snapshot := line.company.Snapshot()
		detail.DeliveryCompanyID = &companyID
		detail.DeliveryCompanyInfo = &snapshot
	}
	if line.company != nil && line.zone != nil {
		zoneID := line.zone.ID
		snapshot := line.zone.Snapshot()
		detail.DeliveryZoneID = &zoneID
		detail.DeliveryZoneDetail = &snapshot
		detail.DeliveryCommissionRate = line.company.SiteCommission
	}
	return detail, nil
}

// UpdatePaid confirms payment for every detail of the order and issues
// download links for digital lines.
func (s *Service) UpdatePaid(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Order, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return mapNotFound(err, "Order not found", "load order")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order has already been paid")
		}

		paidAt := s.now()
		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"transaction_id": transactionID,
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment")
		}
		if err := repo.UpdateDetailsByOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order details payment")
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.TransactionID = &transactionID

		for i := range order.Details {
			detail := &order.Details[i]
			detail.PaymentStatus = enums.PaymentStatusPaid
			detail.TransactionID = &transactionID
			if _, err := s.issueDigitalLink(ctx, tx, repo, order, detail); err != nil {
				return err
			}
		}

		if err := addLog(ctx, repo, LogEntry{
			OrderID:   order.ID,
			EventType: LogEventPaid,
			ChangedBy: order.CustomerID,
			OldData:   map[string]any{"payment_status": enums.PaymentStatusPending},
			NewData:   map[string]any{"payment_status": enums.PaymentStatusPaid, "transaction_id": transactionID},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         customerActor(order.CustomerID),
			OccurredAt:    paidAt,
			Data:          orderPaidPayload(order, transactionID, paidAt),
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves one detail forward through the fulfilment lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, detailID uuid.UUID, status enums.OrderStatus, actor Actor) (*models.OrderDetail, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	var detail *models.OrderDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		detail, err = repo.FindDetail(ctx, detailID)
		if err != nil {
			return mapNotFound(err, "Order detail not found", "load order detail")
		}
		if actor.Role == enums.ActorRoleShop && (actor.TenantID == nil || *actor.TenantID != detail.ShopID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order detail belongs to another shop")
		}

		from := detail.Status
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			if from.IsTerminal() {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Cannot rollback status if it is %s!", from)
			}
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Cannot change status from %s to %s", from, status)
		}

		if err := repo.UpdateDetail(ctx, detail.ID, map[string]any{"status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order detail status")
		}
		detail.Status = status

		if err := addLog(ctx, repo, LogEntry{
			OrderID:       detail.OrderID,
			OrderDetailID: &detail.ID,
			EventType:     LogEventStatus,
			ChangedBy:     actor.ID,
			OldData:       map[string]any{"status": from},
			NewData:       map[string]any{"status": status},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrderDetail,
			AggregateID:   detail.ID,
			Actor:         actor.ref(),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       detail.OrderID,
				OrderDetailID: detail.ID,
				ShopID:        detail.ShopID,
				CustomerID:    detail.CustomerID,
				Email:         detail.Email,
				TrackingCode:  detail.TrackingCode,
				From:          from,
				To:            status,
				ChangedBy:     actor.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// RequestRefund records a refund ask for one detail and notifies the shop.
func (s *Service) RequestRefund(ctx context.Context, detailID uuid.UUID, reason string, actor Actor) (*models.RefundRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var request *models.RefundRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		detail, err := repo.FindDetail(ctx, detailID)
		if err != nil {
			return mapNotFound(err, "Order detail not found", "load order detail")
		}
		if actor.Role == enums.ActorRoleCustomer && (detail.CustomerID == nil || actor.ID == nil || *detail.CustomerID != *actor.ID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order detail belongs to another customer")
		}
		if detail.Status == enums.OrderStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeConflict, "Order has been refunded")
		}
		exists, err := repo.HasRefundRequest(ctx, detail.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check refund requests")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "Refund has already been requested")
		}

		request = &models.RefundRequest{
			ID:            uuid.New(),
			OrderID:       detail.OrderID,
			OrderDetailID: detail.ID,
			ShopID:        detail.ShopID,
			CustomerID:    detail.CustomerID,
			Reason:        reason,
			Status:        enums.RefundStatusPending,
		}
		if err := repo.CreateRefundRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
		}

		if err := addLog(ctx, repo, LogEntry{
			OrderID:       detail.OrderID,
			OrderDetailID: &detail.ID,
			EventType:     LogEventRefund,
			ChangedBy:     actor.ID,
			NewData:       map[string]any{"reason": reason},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateOrderDetail,
			AggregateID:   detail.ID,
			Actor:         actor.ref(),
			Data: payloads.RefundRequestedEvent{
				RefundRequestID: request.ID,
				OrderID:         detail.OrderID,
				OrderDetailID:   detail.ID,
				ShopID:          detail.ShopID,
				CustomerID:      detail.CustomerID,
				TrackingCode:    detail.TrackingCode,
				Reason:          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// AddLog appends an audit entry. tx may be nil outside a transaction.
func (s *Service) AddLog(ctx context.Context, tx *gorm.DB, entry LogEntry) error {
	return addLog(ctx, s.repo.WithTx(tx), entry)
}

// LogWriter appends audit entries for processes that do not run the full
// order service.
type LogWriter struct {
	repo Repository
}

func NewLogWriter(repo Repository) *LogWriter {
	return &LogWriter{repo: repo}
}

// AddLog appends an audit entry. tx may be nil outside a transaction.
func (w *LogWriter) AddLog(ctx context.Context, tx *gorm.DB, entry LogEntry) error {
	return addLog(ctx, w.repo.WithTx(tx), entry)
}

func addLog(ctx context.Context, repo Repository, entry LogEntry) error {
	if entry.OrderID == uuid.Nil || strings.TrimSpace(entry.EventType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and event type are required")
	}
	log := &models.OrderLog{
		ID:            uuid.New(),
		OrderID:       entry.OrderID,
		OrderDetailID: entry.OrderDetailID,
		EventType:     entry.EventType,
		ChangedBy:     entry.ChangedBy,
		OldData:       entry.OldData,
		NewData:       entry.NewData,
	}
	if err := repo.CreateLog(ctx, log); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order log")
	}
	return nil
}

// LogHistory returns the audit trail of an order, oldest first.
func (s *Service) LogHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error) {
	logs, err := s.repo.ListLogs(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order logs")
	}
	return logs, nil
}

// Get loads an order with its details.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "Order not found", "load order")
	}
	return order, nil
}

// GetByTrackingCode loads an order by its customer-facing code.
func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking code required")
	}
	order, err := s.repo.FindOrderByTrackingCode(ctx, code)
	if err != nil {
		return nil, mapNotFound(err, "Order not found", "load order")
	}
	return order, nil
}

// GetDetail loads one order detail.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "Order detail not found", "load order detail")
	}
	return detail, nil
}

// List pages orders newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Order], error) {
	page, err := s.repo.ListOrders(ctx, filter, params)
	switch {
	case errors.Is(err, pagination.ErrInvalidCursor):
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	case err != nil:
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page, nil
}

// SaleStats aggregates completed details.
func (s *Service) SaleStats(ctx context.Context, filter SaleStatsFilter) (*SaleStats, error) {
	stats, err := s.repo.SaleStats(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate sales")
	}
	return stats, nil
}

// GetCommission returns the marketplace commission rate.
func (s *Service) GetCommission(ctx context.Context) decimal.Decimal {
	return s.catalog.GetCommission(ctx)
}

func (a Actor) ref() *outbox.ActorRef {
	if a.ID == nil {
		return nil
	}
	return &outbox.ActorRef{ID: *a.ID, Role: a.Role}
}

func customerActor(customerID *uuid.UUID) *outbox.ActorRef {
	if customerID == nil {
		return nil
	}
	return &outbox.ActorRef{ID: *customerID, Role: enums.ActorRoleCustomer}
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	event := payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		TrackingCode:  order.TrackingCode,
		CustomerID:    order.CustomerID,
		Email:         order.Email,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		Currency:      order.Currency,
	}
	shops := make(map[uuid.UUID]struct{})
	for _, detail := range order.Details {
		event.DetailIDs = append(event.DetailIDs, detail.ID)
		if _, ok := shops[detail.ShopID]; !ok {
			shops[detail.ShopID] = struct{}{}
			event.ShopIDs = append(event.ShopIDs, detail.ShopID)
		}
	}
	return event
}

func orderPaidPayload(order *models.Order, transactionID string, paidAt time.Time) payloads.OrderPaidEvent {
	event := payloads.OrderPaidEvent{
		OrderID:       order.ID,
		TrackingCode:  order.TrackingCode,
		CustomerID:    order.CustomerID,
		Email:         order.Email,
		TransactionID: transactionID,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		Currency:      order.Currency,
		PaidAt:        paidAt,
		Lines:         make([]payloads.SaleLine, 0, len(order.Details)),
	}
	for _, detail := range order.Details {
		event.Lines = append(event.Lines, saleLine(detail))
	}
	return event
}

func saleLine(detail models.OrderDetail) payloads.SaleLine {
	return payloads.SaleLine{
		OrderDetailID: detail.ID,
		ShopID:        detail.ShopID,
		ProductID:     detail.ProductID,
		ProductName:   detail.ProductDetails.Name,
		Quantity:      detail.Quantity,
		TotalPrice:    detail.TotalPrice,
		TaxPrice:      detail.TaxPrice,
		Commission:    detail.Commission,
		Balance:       detail.Balance,
	}
}
