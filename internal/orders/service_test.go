package orders

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/catalog"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/db/dbtest"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

type fakeDelivery struct {
	companies map[uuid.UUID]*models.Company
	zones     map[uuid.UUID]*models.DeliveryZone
}

func (f *fakeDelivery) FindCompany(_ context.Context, id uuid.UUID) (*models.Company, error) {
	if c, ok := f.companies[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDelivery) FindZone(_ context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	if z, ok := f.zones[id]; ok {
		return z, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type recordingMetrics struct {
	created int
}

func (m *recordingMetrics) OrderCreated(string, string, decimal.Decimal) {
	m.created++
}

type harness struct {
	conn     *gorm.DB
	svc      *Service
	delivery *fakeDelivery
	metrics  *recordingMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	pricingCfg := config.PricingConfig{CommissionFee: 0.1, SiteCurrency: "ZMW"}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), pricingCfg, nil)
	require.NoError(t, err)

	h := &harness{
		conn:     conn,
		delivery: &fakeDelivery{companies: map[uuid.UUID]*models.Company{}, zones: map[uuid.UUID]*models.DeliveryZone{}},
		metrics:  &recordingMetrics{},
	}
	h.svc, err = NewService(
		db.Wrap(conn),
		NewRepository(conn),
		catalogSvc,
		h.delivery,
		outbox.NewService(outbox.NewRepository(conn), nil),
		h.metrics,
		Config{
			Pricing: pricingCfg,
			Digital: config.DigitalConfig{TokenSecret: "download-secret", TokenTTL: 24 * time.Hour},
			BaseURL: "https://bazaar.test",
		},
		nil,
	)
	require.NoError(t, err)
	return h
}

func (h *harness) shop(t *testing.T, mutate func(*models.Shop)) *models.Shop {
	t.Helper()
	rate := decimal.RequireFromString("0.1")
	shop := &models.Shop{Name: "Kalulu Crafts", Email: "shop@kalulu.test", Commission: &rate, Activated: true}
	if mutate != nil {
		mutate(shop)
	}
	require.NoError(t, h.conn.Create(shop).Error)
	return shop
}

func (h *harness) product(t *testing.T, shop *models.Shop, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		ShopID:        shop.ID,
		Name:          "Chitenge wrap",
		Type:          enums.ProductTypePhysical,
		Price:         decimal.NewFromInt(100),
		TaxPercentage: decimal.NewFromInt(20),
		StockQuantity: 10,
		IsActive:      true,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, h.conn.Create(product).Error)
	return product
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func buyer(lines ...CreateOrderLine) CreateOrderInput {
	return CreateOrderInput{
		Lines:         lines,
		PaymentMethod: enums.PaymentMethodCOD,
		FirstName:     "Mwila",
		LastName:      "Banda",
		Email:         "mwila@example.test",
		PhoneNumber:   "+260970000000",
		City:          "Kitwe",
		Country:       "Zambia",
	}
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestCreatePricesAndPersistsOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)

	order, err := h.svc.Create(ctx, buyer(CreateOrderLine{ProductID: product.ID, Quantity: 2}))
	require.NoError(t, err)
	require.Len(t, order.Details, 1)

	detail := order.Details[0]
	requireDec(t, "40", detail.TaxPrice)
	requireDec(t, "23.20", detail.Commission)
	requireDec(t, "240", detail.TotalPrice)
	requireDec(t, "216.80", detail.Balance)
	requireDec(t, "240", order.TotalPrice)
	assert.Equal(t, 2, order.TotalProducts)
	assert.Equal(t, enums.OrderStatusPending, detail.Status)
	assert.Equal(t, enums.DeliveryStatusProcessing, detail.DeliveryStatus)
	assert.Equal(t, product.Name, detail.ProductDetails.Name)
	assert.Equal(t, shop.Name, detail.ShopDetail.Name)

	stored, err := h.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Details, 1)
	requireDec(t, "216.80", stored.Details[0].Balance)

	var reloaded models.Product
	require.NoError(t, h.conn.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 8, reloaded.StockQuantity)

	assert.EqualValues(t, 1, h.countEvents(t, enums.EventOrderCreated))
	assert.Equal(t, 1, h.metrics.created)

	logs, err := h.svc.LogHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, LogEventCreated, logs[0].EventType)
}

func TestCreateDropsStockExhaustedVariantLine(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)
	other := h.product(t, shop, func(p *models.Product) { p.Name = "Basket" })

	price := decimal.NewFromInt(90)
	variant := models.ProductVariant{ProductID: product.ID, Price: &price, StockQuantity: 0}
	require.NoError(t, h.conn.Create(&variant).Error)

	order, err := h.svc.Create(ctx, buyer(
		CreateOrderLine{ProductID: product.ID, Quantity: 1, ProductVariantID: &variant.ID},
		CreateOrderLine{ProductID: other.ID, Quantity: 1},
	))
	require.NoError(t, err)
	require.Len(t, order.Details, 1)
	assert.Equal(t, other.ID, order.Details[0].ProductID)

	var count int64
	require.NoError(t, h.conn.Model(&models.OrderDetail{}).Where("product_id = ?", product.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateKeepsOrderWhenOnlyLineIsExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)

	price := decimal.NewFromInt(45)
	variant := models.ProductVariant{ProductID: product.ID, Price: &price, StockQuantity: 0}
	require.NoError(t, h.conn.Create(&variant).Error)

	order, err := h.svc.Create(ctx, buyer(CreateOrderLine{ProductID: product.ID, Quantity: 3, ProductVariantID: &variant.ID}))
	require.NoError(t, err)
	assert.Empty(t, order.Details)
	requireDec(t, "0", order.TotalPrice)
	assert.Zero(t, order.TotalProducts)

	var details int64
	require.NoError(t, h.conn.Model(&models.OrderDetail{}).Where("order_id = ?", order.ID).Count(&details).Error)
	assert.Zero(t, details)

	stored, err := h.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TrackingCode, stored.TrackingCode)

	var reloaded models.ProductVariant
	require.NoError(t, h.conn.First(&reloaded, "id = ?", variant.ID).Error)
	assert.Zero(t, reloaded.StockQuantity)
}

func TestCreateWaivesShippingForFreeShipArea(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, func(s *models.Shop) {
		s.StoreWideShipping = true
		s.ShippingDefaultPrice = decimal.NewFromInt(10)
		s.ShippingPerQuantityPrice = decimal.NewFromInt(2)
	})
	product := h.product(t, shop, func(p *models.Product) {
		p.TaxPercentage = decimal.Zero
		p.RestrictFreeShipAreas = []types.FreeShipArea{{AreaType: enums.FreeShipAreaCity, Value: "Lusaka"}}
	})

	input := buyer(CreateOrderLine{ProductID: product.ID, Quantity: 2})
	input.City = "Lusaka"
	order, err := h.svc.Create(ctx, input)
	require.NoError(t, err)
	requireDec(t, "0", order.Details[0].ShippingPrice)
	requireDec(t, "200", order.Details[0].TotalPrice)

	input.City = "Ndola"
	order, err = h.svc.Create(ctx, input)
	require.NoError(t, err)
	requireDec(t, "12", order.Details[0].ShippingPrice)
}

func TestCreateWaivesShippingForFreeShipShopAndCategory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	paid := func(s *models.Shop) {
		s.StoreWideShipping = true
		s.ShippingDefaultPrice = decimal.NewFromInt(10)
		s.ShippingPerQuantityPrice = decimal.NewFromInt(2)
	}

	freeShop := h.shop(t, func(s *models.Shop) { paid(s); s.FreeShip = true })
	product := h.product(t, freeShop, func(p *models.Product) { p.TaxPercentage = decimal.Zero })
	order, err := h.svc.Create(ctx, buyer(CreateOrderLine{ProductID: product.ID, Quantity: 2}))
	require.NoError(t, err)
	requireDec(t, "0", order.Details[0].ShippingPrice)

	category := models.ProductCategory{Name: "Books", FreeShip: true}
	require.NoError(t, h.conn.Create(&category).Error)
	shop := h.shop(t, paid)
	book := h.product(t, shop, func(p *models.Product) {
		p.TaxPercentage = decimal.Zero
		p.CategoryID = &category.ID
	})
	plain := h.product(t, shop, func(p *models.Product) {
		p.Name = "Lamp"
		p.TaxPercentage = decimal.Zero
	})

	order, err = h.svc.Create(ctx, buyer(
		CreateOrderLine{ProductID: book.ID, Quantity: 2},
		CreateOrderLine{ProductID: plain.ID, Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, order.Details, 2)
	for _, detail := range order.Details {
		if detail.ProductID == book.ID {
			requireDec(t, "0", detail.ShippingPrice)
		} else {
			requireDec(t, "12", detail.ShippingPrice)
		}
	}
}

func TestCreateAppliesCouponAndDelivery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, func(p *models.Product) { p.TaxPercentage = decimal.Zero })

	coupon := models.Coupon{
		ShopID:             shop.ID,
		Name:               "Ten off",
		Code:               "TEN",
		DiscountPercentage: decimal.NewFromInt(10),
		Active:             true,
	}
	require.NoError(t, h.conn.Create(&coupon).Error)

	company := &models.Company{ID: uuid.New(), Name: "Swift Couriers", Email: "ops@swift.test", SiteCommission: decimal.RequireFromString("0.15")}
	zone := &models.DeliveryZone{ID: uuid.New(), CompanyID: company.ID, Name: "CBD", City: "Kitwe", DeliveryPrice: decimal.NewFromInt(20)}
	h.delivery.companies[company.ID] = company
	h.delivery.zones[zone.ID] = zone

	order, err := h.svc.Create(ctx, buyer(CreateOrderLine{
		ProductID:         product.ID,
		Quantity:          1,
		CouponCode:        "ten",
		DeliveryCompanyID: &company.ID,
		DeliveryZoneID:    &zone.ID,
	}))
	require.NoError(t, err)

	detail := order.Details[0]
	requireDec(t, "90", detail.ProductPrice)
	requireDec(t, "20", detail.DeliveryPrice)
	requireDec(t, "3", detail.DeliveryCommission)
	requireDec(t, "17", detail.DeliveryBalance)
	requireDec(t, "110", detail.TotalPrice)
	require.NotNil(t, detail.CouponCode)
	assert.Equal(t, "TEN", *detail.CouponCode)
	require.NotNil(t, detail.DeliveryZoneDetail)
	assert.Equal(t, "CBD", detail.DeliveryZoneDetail.Name)

	var reloaded models.Coupon
	require.NoError(t, h.conn.First(&reloaded, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, reloaded.UsedCount)
}

func TestCreateUnknownDeliveryDegrades(t *testing.T) {
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)
	missing := uuid.New()

	order, err := h.svc.Create(context.Background(), buyer(CreateOrderLine{
		ProductID:         product.ID,
		Quantity:          1,
		DeliveryCompanyID: &missing,
		DeliveryZoneID:    &missing,
		CouponCode:        "NOPE",
	}))
	require.NoError(t, err)
	detail := order.Details[0]
	assert.Nil(t, detail.DeliveryCompanyID)
	requireDec(t, "0", detail.DeliveryPrice)
	assert.Nil(t, detail.CouponCode)
}

func TestCreateRejectsUnknownProducts(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), buyer(CreateOrderLine{ProductID: uuid.New(), Quantity: 1}))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "No products", pkgerrors.As(err).Message())

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdatePaidIssuesDigitalLinks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)

	file := models.DigitalFile{Name: "ebook.pdf", FilePath: "digital/ebook.pdf"}
	require.NoError(t, h.conn.Create(&file).Error)
	digital := h.product(t, shop, func(p *models.Product) {
		p.Type = enums.ProductTypeDigital
		p.DigitalFileID = &file.ID
	})
	physical := h.product(t, shop, nil)

	order, err := h.svc.Create(ctx, buyer(
		CreateOrderLine{ProductID: digital.ID, Quantity: 1},
		CreateOrderLine{ProductID: physical.ID, Quantity: 1},
	))
	require.NoError(t, err)

	paid, err := h.svc.UpdatePaid(ctx, order.ID, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)

	for _, detail := range paid.Details {
		stored, err := h.svc.GetDetail(ctx, detail.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
		if stored.ProductID == digital.ID {
			assert.Equal(t, enums.OrderStatusCompleted, stored.Status)
		} else {
			assert.Equal(t, enums.OrderStatusPending, stored.Status)
		}
	}
	assert.EqualValues(t, 1, h.countEvents(t, enums.EventDigitalLinkIssued))
	assert.EqualValues(t, 1, h.countEvents(t, enums.EventOrderPaid))

	_, err = h.svc.UpdatePaid(ctx, order.ID, "txn-2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var digitalDetailID uuid.UUID
	for _, detail := range paid.Details {
		if detail.ProductID == digital.ID {
			digitalDetailID = detail.ID
		}
	}
	link, err := h.svc.SendDigitalLink(ctx, digitalDetailID)
	require.NoError(t, err)
	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "bazaar.test", parsed.Host)

	resolved, err := h.svc.DigitalFileFromToken(ctx, digitalDetailID, parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "digital/ebook.pdf", resolved.FilePath)

	_, err = h.svc.DigitalFileFromToken(ctx, digitalDetailID, "not-a-token")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestUpdatePaidUnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.UpdatePaid(context.Background(), uuid.New(), "txn")
	require.Error(t, err)
	assert.Equal(t, "Order not found", pkgerrors.As(err).Message())
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)
	order, err := h.svc.Create(ctx, buyer(CreateOrderLine{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)
	detailID := order.Details[0].ID

	otherShop := uuid.New()
	_, err = h.svc.UpdateStatus(ctx, detailID, enums.OrderStatusShipping, Actor{Role: enums.ActorRoleShop, TenantID: &otherShop})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	actorID := uuid.New()
	admin := Actor{ID: &actorID, Role: enums.ActorRoleAdmin}
	detail, err := h.svc.UpdateStatus(ctx, detailID, enums.OrderStatusShipping, admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipping, detail.Status)

	_, err = h.svc.UpdateStatus(ctx, detailID, enums.OrderStatusPending, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.UpdateStatus(ctx, detailID, enums.OrderStatusCompleted, admin)
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, detailID, enums.OrderStatusProgressing, admin)
	require.Error(t, err)
	assert.Equal(t, "Cannot rollback status if it is completed!", pkgerrors.As(err).Message())

	assert.EqualValues(t, 2, h.countEvents(t, enums.EventOrderStatusChanged))
	logs, err := h.svc.LogHistory(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestRequestRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)
	customerID := uuid.New()

	input := buyer(CreateOrderLine{ProductID: product.ID, Quantity: 1})
	input.CustomerID = &customerID
	order, err := h.svc.Create(ctx, input)
	require.NoError(t, err)
	detailID := order.Details[0].ID
	customer := Actor{ID: &customerID, Role: enums.ActorRoleCustomer}

	stranger := uuid.New()
	_, err = h.svc.RequestRefund(ctx, detailID, "damaged", Actor{ID: &stranger, Role: enums.ActorRoleCustomer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	request, err := h.svc.RequestRefund(ctx, detailID, "damaged", customer)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusPending, request.Status)
	assert.EqualValues(t, 1, h.countEvents(t, enums.EventRefundRequested))

	_, err = h.svc.RequestRefund(ctx, detailID, "again", customer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, h.conn.Model(&models.OrderDetail{}).Where("id = ?", detailID).Update("status", enums.OrderStatusRefunded).Error)
	_, err = h.svc.RequestRefund(ctx, detailID, "again", customer)
	require.Error(t, err)
	assert.Equal(t, "Order has been refunded", pkgerrors.As(err).Message())

	_, err = h.svc.RequestRefund(ctx, uuid.New(), "missing", customer)
	assert.Equal(t, "Order detail not found", pkgerrors.As(err).Message())
}

func TestSaleStatsAndListing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	shop := h.shop(t, nil)
	product := h.product(t, shop, nil)

	var last *models.Order
	for i := 0; i < 3; i++ {
		order, err := h.svc.Create(ctx, buyer(CreateOrderLine{ProductID: product.ID, Quantity: 2}))
		require.NoError(t, err)
		last = order
	}
	require.NoError(t, h.conn.Model(&models.OrderDetail{}).Where("order_id = ?", last.ID).Update("status", enums.OrderStatusCompleted).Error)

	stats, err := h.svc.SaleStats(ctx, SaleStatsFilter{ShopID: &shop.ID})
	require.NoError(t, err)
	requireDec(t, "240", stats.TotalPrice)
	requireDec(t, "23.20", stats.Commission)
	requireDec(t, "216.80", stats.Balance)
	assert.EqualValues(t, 2, stats.TotalProduct)
	assert.EqualValues(t, 1, stats.TotalOrder)

	page, err := h.svc.List(ctx, ListFilter{ShopID: &shop.ID}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := h.svc.List(ctx, ListFilter{ShopID: &shop.ID}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)

	found, err := h.svc.GetByTrackingCode(ctx, last.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, last.ID, found.ID)

	_, err = h.svc.List(ctx, ListFilter{}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
