package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	internalorders "github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

type stubOrdersService struct {
	Service
	createFn       func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	listFn         func(ctx context.Context, filter internalorders.ListFilter, params pagination.Params) (pagination.Page[models.Order], error)
	updateStatusFn func(ctx context.Context, detailID uuid.UUID, status enums.OrderStatus, actor internalorders.Actor) (*models.OrderDetail, error)
	digitalFn      func(ctx context.Context, detailID uuid.UUID, token string) (*models.DigitalFile, error)
	paidFn         func(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Order, error)
}

func (s *stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return s.createFn(ctx, input)
}

func (s *stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.getFn(ctx, id)
}

func (s *stubOrdersService) List(ctx context.Context, filter internalorders.ListFilter, params pagination.Params) (pagination.Page[models.Order], error) {
	return s.listFn(ctx, filter, params)
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, detailID uuid.UUID, status enums.OrderStatus, actor internalorders.Actor) (*models.OrderDetail, error) {
	return s.updateStatusFn(ctx, detailID, status, actor)
}

func (s *stubOrdersService) DigitalFileFromToken(ctx context.Context, detailID uuid.UUID, token string) (*models.DigitalFile, error) {
	return s.digitalFn(ctx, detailID, token)
}

func (s *stubOrdersService) UpdatePaid(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Order, error) {
	return s.paidFn(ctx, orderID, transactionID)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func withIdentity(req *http.Request, role enums.ActorRole, subjectID uuid.UUID, tenantID *uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), subjectID, role, tenantID))
}

func createBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"products":       []map[string]any{{"product_id": uuid.NewString(), "quantity": 2}},
		"payment_method": "cod",
		"first_name":     "Ada",
		"email":          "ada@example.com",
		"phone_number":   "+260900000000",
		"country":        "ZM",
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestCreateStampsCustomerAndClient(t *testing.T) {
	customerID := uuid.New()
	var captured internalorders.CreateOrderInput
	svc := &stubOrdersService{createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
		captured = input
		return &models.Order{ID: uuid.New(), TrackingCode: "ABC123"}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(createBody(t)))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "bazaar-test")
	req = withIdentity(req, enums.ActorRoleCustomer, customerID, nil)
	resp := httptest.NewRecorder()

	Create(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.CustomerID == nil || *captured.CustomerID != customerID {
		t.Fatalf("expected customer %s got %v", customerID, captured.CustomerID)
	}
	if captured.UserIP != "203.0.113.7" || captured.UserAgent != "bazaar-test" {
		t.Fatalf("unexpected client info %q %q", captured.UserIP, captured.UserAgent)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", captured.Lines)
	}
}

func TestCreateAnonymousCheckout(t *testing.T) {
	var captured internalorders.CreateOrderInput
	svc := &stubOrdersService{createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
		captured = input
		return &models.Order{ID: uuid.New()}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(createBody(t)))
	resp := httptest.NewRecorder()
	Create(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if captured.CustomerID != nil {
		t.Fatal("anonymous order must not carry a customer")
	}
}

func TestCreateRejectsEmptyProducts(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"products":       []map[string]any{},
		"payment_method": "cod",
		"first_name":     "Ada",
		"email":          "ada@example.com",
		"phone_number":   "1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	Create(&stubOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListScopesShopToTenant(t *testing.T) {
	shopID := uuid.New()
	var captured internalorders.ListFilter
	svc := &stubOrdersService{listFn: func(ctx context.Context, filter internalorders.ListFilter, params pagination.Params) (pagination.Page[models.Order], error) {
		captured = filter
		if params.Limit != 10 {
			t.Fatalf("unexpected limit %d", params.Limit)
		}
		return pagination.Page[models.Order]{}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=10&payment_status=paid&shop_id="+uuid.NewString(), nil)
	req = withIdentity(req, enums.ActorRoleShop, uuid.New(), &shopID)
	resp := httptest.NewRecorder()
	List(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.ShopID == nil || *captured.ShopID != shopID {
		t.Fatalf("shop filter must come from the token, got %v", captured.ShopID)
	}
	if captured.PaymentStatus == nil || *captured.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected payment status filter %v", captured.PaymentStatus)
	}
}

func TestListForbiddenForDriver(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = withIdentity(req, enums.ActorRoleDriver, uuid.New(), nil)
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestDetailAuthorizesOwnership(t *testing.T) {
	shopID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{ID: orderID, Details: []models.OrderDetail{{ShopID: shopID}}}
	svc := &stubOrdersService{getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return order, nil
	}}

	cases := []struct {
		name   string
		role   enums.ActorRole
		tenant *uuid.UUID
		status int
	}{
		{name: "owning shop", role: enums.ActorRoleShop, tenant: &shopID, status: http.StatusOK},
		{name: "other shop", role: enums.ActorRoleShop, tenant: uuidPtr(uuid.New()), status: http.StatusForbidden},
		{name: "admin", role: enums.ActorRoleAdmin, status: http.StatusOK},
		{name: "stranger customer", role: enums.ActorRoleCustomer, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
			req = withRouteParam(req, "orderId", orderID.String())
			req = withIdentity(req, tc.role, uuid.New(), tc.tenant)
			resp := httptest.NewRecorder()
			Detail(svc, testLogger())(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestUpdateStatusPassesActor(t *testing.T) {
	shopID := uuid.New()
	userID := uuid.New()
	detailID := uuid.New()
	svc := &stubOrdersService{updateStatusFn: func(ctx context.Context, id uuid.UUID, status enums.OrderStatus, actor internalorders.Actor) (*models.OrderDetail, error) {
		if id != detailID || status != enums.OrderStatusProgressing {
			t.Fatalf("unexpected args %s %s", id, status)
		}
		if actor.Role != enums.ActorRoleShop || actor.TenantID == nil || *actor.TenantID != shopID || *actor.ID != userID {
			t.Fatalf("unexpected actor %+v", actor)
		}
		return &models.OrderDetail{ID: id, Status: status}, nil
	}}

	body, _ := json.Marshal(map[string]string{"status": "progressing"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/details/"+detailID.String()+"/status", bytes.NewReader(body))
	req = withRouteParam(req, "detailId", detailID.String())
	req = withIdentity(req, enums.ActorRoleShop, userID, &shopID)
	resp := httptest.NewRecorder()
	UpdateStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateStatusSurfacesRollbackConflict(t *testing.T) {
	detailID := uuid.New()
	svc := &stubOrdersService{updateStatusFn: func(ctx context.Context, id uuid.UUID, status enums.OrderStatus, actor internalorders.Actor) (*models.OrderDetail, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot rollback status if it is completed!")
	}}

	body, _ := json.Marshal(map[string]string{"status": "pending"})
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(body))
	req = withRouteParam(req, "detailId", detailID.String())
	req = withIdentity(req, enums.ActorRoleAdmin, uuid.New(), nil)
	resp := httptest.NewRecorder()
	UpdateStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestDownloadDigitalRedirectsToRemoteFile(t *testing.T) {
	detailID := uuid.New()
	svc := &stubOrdersService{digitalFn: func(ctx context.Context, id uuid.UUID, token string) (*models.DigitalFile, error) {
		if token != "signed" {
			t.Fatalf("unexpected token %q", token)
		}
		return &models.DigitalFile{FilePath: "https://files.example.com/book.pdf"}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/?token=signed", nil)
	req = withRouteParam(req, "detailId", detailID.String())
	resp := httptest.NewRecorder()
	DownloadDigital(svc, testLogger())(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	if resp.Header().Get("Location") != "https://files.example.com/book.pdf" {
		t.Fatalf("unexpected location %q", resp.Header().Get("Location"))
	}
}

func TestDownloadDigitalRequiresToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withRouteParam(req, "detailId", uuid.NewString())
	resp := httptest.NewRecorder()
	DownloadDigital(&stubOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkPaidRequiresTransaction(t *testing.T) {
	orderID := uuid.New()
	called := false
	svc := &stubOrdersService{paidFn: func(ctx context.Context, id uuid.UUID, txID string) (*models.Order, error) {
		called = true
		return &models.Order{ID: id}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	req = withRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	MarkPaid(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without service call, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"transaction_id":"tx-1"}`)))
	req = withRouteParam(req, "orderId", orderID.String())
	resp = httptest.NewRecorder()
	MarkPaid(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
