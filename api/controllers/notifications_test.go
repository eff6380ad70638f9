package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

// inboxRecorder remembers the inbox and arguments of the last call.
type inboxRecorder struct {
	inbox   notifications.Recipient
	list    notifications.ListParams
	readID  uuid.UUID
	err     error
	updated int64
}

func (s *inboxRecorder) List(_ context.Context, params notifications.ListParams) (pagination.Page[models.Notification], error) {
	s.inbox, s.list = params.Recipient, params
	return pagination.Page[models.Notification]{Items: []models.Notification{}}, s.err
}

func (s *inboxRecorder) MarkRead(_ context.Context, inbox notifications.Recipient, id uuid.UUID) error {
	s.inbox, s.readID = inbox, id
	return s.err
}

func (s *inboxRecorder) MarkAllRead(_ context.Context, inbox notifications.Recipient) (int64, error) {
	s.inbox = inbox
	return s.updated, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withIdentity(req *http.Request, role enums.ActorRole, subjectID uuid.UUID, tenantID *uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), subjectID, role, tenantID))
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func readRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+id+"/read", nil)
	return addRouteParam(req, "notificationId", id)
}

func TestInboxFollowsRole(t *testing.T) {
	tenant := uuid.New()
	subject := uuid.New()

	cases := []struct {
		role enums.ActorRole
		want uuid.UUID
	}{
		{enums.ActorRoleShop, tenant},
		{enums.ActorRoleCompany, tenant},
		{enums.ActorRoleDriver, subject},
		{enums.ActorRoleAdmin, subject},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			svc := &inboxRecorder{updated: 5}
			req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil), tc.role, subject, &tenant)
			resp := httptest.NewRecorder()

			MarkAllNotificationsRead(svc, testLogger())(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("unexpected status %d", resp.Code)
			}
			if svc.inbox.Role != tc.role || svc.inbox.ID != tc.want {
				t.Fatalf("unexpected inbox %+v", svc.inbox)
			}
			var envelope struct {
				Data map[string]int64 `json:"data"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil || envelope.Data["updated"] != 5 {
				t.Fatalf("unexpected body %s (%v)", resp.Body.String(), err)
			}
		})
	}
}

func TestMarkNotificationRead(t *testing.T) {
	shopID := uuid.New()
	id := uuid.New()
	svc := &inboxRecorder{}

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, withIdentity(readRequest(id.String()), enums.ActorRoleShop, uuid.New(), &shopID))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if svc.readID != id || svc.inbox.ID != shopID {
		t.Fatalf("unexpected call inbox=%+v id=%s", svc.inbox, svc.readID)
	}
}

func TestMarkNotificationReadFailures(t *testing.T) {
	cases := []struct {
		name string
		req  *http.Request
		svc  notifications.Service
		want int
	}{
		{"no identity", readRequest(uuid.NewString()), &inboxRecorder{}, http.StatusUnauthorized},
		{"shop without tenant", withIdentity(readRequest(uuid.NewString()), enums.ActorRoleShop, uuid.New(), nil), &inboxRecorder{}, http.StatusForbidden},
		{"bad id", withIdentity(readRequest("invalid"), enums.ActorRoleDriver, uuid.New(), nil), &inboxRecorder{}, http.StatusBadRequest},
		{"not in inbox", withIdentity(readRequest(uuid.NewString()), enums.ActorRoleDriver, uuid.New(), nil), &inboxRecorder{err: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")}, http.StatusNotFound},
		{"no service", withIdentity(readRequest(uuid.NewString()), enums.ActorRoleDriver, uuid.New(), nil), nil, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			MarkNotificationRead(tc.svc, testLogger())(resp, tc.req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestListNotificationsParsesQuery(t *testing.T) {
	companyID := uuid.New()
	svc := &inboxRecorder{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10&cursor=abc&unreadOnly=true", nil)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, withIdentity(req, enums.ActorRoleCompany, companyID, &companyID))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if svc.list.Limit != 10 || svc.list.Cursor != "abc" || !svc.list.UnreadOnly {
		t.Fatalf("unexpected params %+v", svc.list)
	}
	if svc.inbox.ID != companyID || svc.inbox.Role != enums.ActorRoleCompany {
		t.Fatalf("unexpected recipient %+v", svc.inbox)
	}
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"limit=-1", "limit=101", "unreadOnly=maybe"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?"+query, nil)
		resp := httptest.NewRecorder()
		ListNotifications(&inboxRecorder{}, testLogger())(resp, withIdentity(req, enums.ActorRoleAdmin, uuid.New(), nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", query, resp.Code)
		}
	}
}
