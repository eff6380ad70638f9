package payouts

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
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/internal/balances"
	internalpayouts "github.com/bazaarhq/bazaar-backend/internal/payouts"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

type stubPayoutsService struct {
	Service
	balanceFn func(ctx context.Context, tenant balances.Tenant) (types.Balance, error)
	sendFn    func(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error)
	rejectFn  func(ctx context.Context, id uuid.UUID, reason string, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error)
	getFn     func(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) (*models.PayoutRequest, error)
	listFn    func(ctx context.Context, filter internalpayouts.ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error)
}

func (s *stubPayoutsService) Balance(ctx context.Context, tenant balances.Tenant) (types.Balance, error) {
	return s.balanceFn(ctx, tenant)
}

func (s *stubPayoutsService) SendRequest(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error) {
	return s.sendFn(ctx, input)
}

func (s *stubPayoutsService) Reject(ctx context.Context, id uuid.UUID, reason string, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	return s.rejectFn(ctx, id, reason, note, actor)
}

func (s *stubPayoutsService) Get(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) (*models.PayoutRequest, error) {
	return s.getFn(ctx, id, tenant)
}

func (s *stubPayoutsService) List(ctx context.Context, filter internalpayouts.ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error) {
	return s.listFn(ctx, filter, params)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func as(req *http.Request, role enums.ActorRole, subjectID uuid.UUID, tenantID *uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), subjectID, role, tenantID))
}

func withParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestBalanceMapsCompanyToDeliveryTenant(t *testing.T) {
	companyID := uuid.New()
	var got balances.Tenant
	svc := &stubPayoutsService{balanceFn: func(ctx context.Context, tenant balances.Tenant) (types.Balance, error) {
		got = tenant
		return types.Balance{Balance: decimal.NewFromInt(90), TotalOrder: 1}, nil
	}}

	req := as(httptest.NewRequest(http.MethodGet, "/api/v1/payouts/balance", nil), enums.ActorRoleCompany, companyID, &companyID)
	resp := httptest.NewRecorder()
	Balance(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.Type != enums.TenantTypeDelivery || got.ID != companyID {
		t.Fatalf("unexpected tenant %+v", got)
	}
}

func TestBalanceAdminRequiresTenant(t *testing.T) {
	req := as(httptest.NewRequest(http.MethodGet, "/api/v1/payouts/balance", nil), enums.ActorRoleAdmin, uuid.New(), nil)
	resp := httptest.NewRecorder()
	Balance(&stubPayoutsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	shopID := uuid.New()
	var got balances.Tenant
	svc := &stubPayoutsService{balanceFn: func(ctx context.Context, tenant balances.Tenant) (types.Balance, error) {
		got = tenant
		return types.Balance{}, nil
	}}
	req = as(httptest.NewRequest(http.MethodGet, "/api/v1/payouts/balance?tenant_type=shop&tenant_id="+shopID.String(), nil), enums.ActorRoleAdmin, uuid.New(), nil)
	resp = httptest.NewRecorder()
	Balance(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK || got.ID != shopID || got.Type != enums.TenantTypeShop {
		t.Fatalf("unexpected result %d %+v", resp.Code, got)
	}
}

func TestSendRequestWithoutBody(t *testing.T) {
	shopID := uuid.New()
	svc := &stubPayoutsService{sendFn: func(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error) {
		if input.Tenant.Type != enums.TenantTypeShop || input.Tenant.ID != shopID {
			t.Fatalf("unexpected tenant %+v", input.Tenant)
		}
		if input.PayoutAccountID != nil {
			t.Fatal("expected no account")
		}
		return &models.PayoutRequest{ID: uuid.New(), Status: enums.PayoutStatusPending}, nil
	}}

	req := as(httptest.NewRequest(http.MethodPost, "/api/v1/payouts/requests", nil), enums.ActorRoleShop, uuid.New(), &shopID)
	resp := httptest.NewRecorder()
	SendRequest(svc, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSendRequestForwardsAccount(t *testing.T) {
	shopID := uuid.New()
	accountID := uuid.New()
	svc := &stubPayoutsService{sendFn: func(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error) {
		if input.PayoutAccountID == nil || *input.PayoutAccountID != accountID {
			t.Fatalf("unexpected account %v", input.PayoutAccountID)
		}
		return &models.PayoutRequest{ID: uuid.New()}, nil
	}}

	body, _ := json.Marshal(map[string]any{"payout_account_id": accountID})
	req := as(httptest.NewRequest(http.MethodPost, "/api/v1/payouts/requests", bytes.NewReader(body)), enums.ActorRoleShop, uuid.New(), &shopID)
	resp := httptest.NewRecorder()
	SendRequest(svc, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestSendRequestForbiddenForDriver(t *testing.T) {
	companyID := uuid.New()
	req := as(httptest.NewRequest(http.MethodPost, "/api/v1/payouts/requests", nil), enums.ActorRoleDriver, uuid.New(), &companyID)
	resp := httptest.NewRecorder()
	SendRequest(&stubPayoutsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestSendRequestSurfacesEmptyBalance(t *testing.T) {
	shopID := uuid.New()
	svc := &stubPayoutsService{sendFn: func(ctx context.Context, input internalpayouts.SendRequestInput) (*models.PayoutRequest, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Your balance is empty")
	}}
	req := as(httptest.NewRequest(http.MethodPost, "/api/v1/payouts/requests", nil), enums.ActorRoleShop, uuid.New(), &shopID)
	resp := httptest.NewRecorder()
	SendRequest(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRejectRequiresReasonAndRecordsAdmin(t *testing.T) {
	adminID := uuid.New()
	requestID := uuid.New()
	svc := &stubPayoutsService{rejectFn: func(ctx context.Context, id uuid.UUID, reason string, note *string, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
		if id != requestID || reason != "bank details mismatch" {
			t.Fatalf("unexpected args %s %q", id, reason)
		}
		if actor == nil || actor.ID != adminID || actor.Role != enums.ActorRoleAdmin {
			t.Fatalf("unexpected actor %+v", actor)
		}
		return &models.PayoutRequest{ID: id, Status: enums.PayoutStatusRejected}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	req = as(withParam(req, "requestId", requestID.String()), enums.ActorRoleAdmin, adminID, nil)
	resp := httptest.NewRecorder()
	Reject(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"reason":"bank details mismatch"}`)))
	req = as(withParam(req, "requestId", requestID.String()), enums.ActorRoleAdmin, adminID, nil)
	resp = httptest.NewRecorder()
	Reject(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGetRequestScopesToTenant(t *testing.T) {
	shopID := uuid.New()
	requestID := uuid.New()
	svc := &stubPayoutsService{getFn: func(ctx context.Context, id uuid.UUID, tenant *balances.Tenant) (*models.PayoutRequest, error) {
		if tenant == nil || tenant.ID != shopID {
			t.Fatalf("expected shop scope, got %+v", tenant)
		}
		return &models.PayoutRequest{ID: id}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = as(withParam(req, "requestId", requestID.String()), enums.ActorRoleShop, uuid.New(), &shopID)
	resp := httptest.NewRecorder()
	GetRequest(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestListRequestsAdminFilters(t *testing.T) {
	var captured internalpayouts.ListFilter
	svc := &stubPayoutsService{listFn: func(ctx context.Context, filter internalpayouts.ListFilter, params pagination.Params) (pagination.Page[models.PayoutRequest], error) {
		captured = filter
		return pagination.Page[models.PayoutRequest]{}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts/requests?status=pending", nil)
	req = as(req, enums.ActorRoleAdmin, uuid.New(), nil)
	resp := httptest.NewRecorder()
	ListRequests(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.Tenant != nil {
		t.Fatalf("admin without tenant query should list all, got %+v", captured.Tenant)
	}
	if captured.Status == nil || *captured.Status != enums.PayoutStatusPending {
		t.Fatalf("unexpected status filter %v", captured.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payouts/requests?tenant_type=bank", nil)
	req = as(req, enums.ActorRoleAdmin, uuid.New(), nil)
	resp = httptest.NewRecorder()
	ListRequests(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
