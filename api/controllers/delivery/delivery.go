package delivery

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	ordercontrollers "github.com/bazaarhq/bazaar-backend/api/controllers/orders"
	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/api/validators"
	internaldelivery "github.com/bazaarhq/bazaar-backend/internal/delivery"
	"github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Service is the slice of the delivery service the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, input internaldelivery.CompanyInput) (*models.Company, error)
	Create(ctx context.Context, input internaldelivery.CompanyInput) (*models.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompany(ctx context.Context, id uuid.UUID, input internaldelivery.UpdateCompanyInput) (*models.Company, error)
	CreateZone(ctx context.Context, companyID uuid.UUID, input internaldelivery.ZoneInput) (*models.DeliveryZone, error)
	ListZones(ctx context.Context, companyID uuid.UUID) ([]models.DeliveryZone, error)
	UpdateZone(ctx context.Context, zoneID uuid.UUID, companyID *uuid.UUID, input internaldelivery.UpdateZoneInput) (*models.DeliveryZone, error)
	CreateDriver(ctx context.Context, input internaldelivery.DriverInput) (*internaldelivery.CreatedDriver, error)
	UpdateDriver(ctx context.Context, driverID uuid.UUID, companyID *uuid.UUID, input internaldelivery.UpdateDriverInput) (*models.Driver, error)
	UpdatePosition(ctx context.Context, driverID uuid.UUID, location types.Location) error
	AssignDriver(ctx context.Context, detailID, driverID uuid.UUID, actor orders.Actor) error
	AssignDriverMultipleOrders(ctx context.Context, detailIDs []uuid.UUID, driverID uuid.UUID, actor orders.Actor) ([]uuid.UUID, error)
	ChangeStatus(ctx context.Context, detailID uuid.UUID, status enums.DeliveryStatus, actor orders.Actor) (*models.OrderDetail, error)
}

type assignRequest struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

type assignManyRequest struct {
	DriverID  uuid.UUID   `json:"driver_id" validate:"required"`
	DetailIDs []uuid.UUID `json:"detail_ids" validate:"required,min=1"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type assignedResponse struct {
	Assigned []uuid.UUID `json:"assigned"`
}

type positionRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable")

func handle(svc Service, logg *logger.Logger, status int, fn responses.Endpoint) http.HandlerFunc {
	if svc == nil {
		return responses.Fail(logg, errUnavailable)
	}
	return responses.Handle(logg, status, fn)
}

// body decodes and validates the JSON request body into a fresh T.
func body[T any](r *http.Request) (T, error) {
	var v T
	err := validators.DecodeJSONBody(r, &v)
	return v, err
}

// RegisterCompany is the public self-service signup. New companies start unverified.
func RegisterCompany(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		input, err := body[internaldelivery.CompanyInput](r)
		if err != nil {
			return nil, err
		}
		return svc.Register(r.Context(), input)
	})
}

// CreateCompany lets an admin onboard a company with explicit commission and price.
func CreateCompany(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		input, err := body[internaldelivery.CompanyInput](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), input)
	})
}

func GetCompany(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		companyID, err := companyParam(r)
		if err != nil {
			return nil, err
		}
		return svc.GetCompany(r.Context(), companyID)
	})
}

// UpdateCompany patches a company. Verification and commission are admin-only fields.
func UpdateCompany(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		companyID, err := companyParam(r)
		if err != nil {
			return nil, err
		}
		input, err := body[internaldelivery.UpdateCompanyInput](r)
		if err != nil {
			return nil, err
		}
		adminOnly := input.Verified != nil || input.Activated != nil || input.SiteCommission != nil
		if adminOnly && middleware.RoleFromContext(r.Context()) != enums.ActorRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may change verification or commission")
		}
		return svc.UpdateCompany(r.Context(), companyID, input)
	})
}

func ListZones(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		companyID, err := companyParam(r)
		if err != nil {
			return nil, err
		}
		return svc.ListZones(r.Context(), companyID)
	})
}

func CreateZone(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		companyID, err := companyParam(r)
		if err != nil {
			return nil, err
		}
		input, err := body[internaldelivery.ZoneInput](r)
		if err != nil {
			return nil, err
		}
		return svc.CreateZone(r.Context(), companyID, input)
	})
}

func UpdateZone(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		zoneID, err := validators.ParseUUIDParam(r, "zoneId", "zone id")
		if err != nil {
			return nil, err
		}
		input, err := body[internaldelivery.UpdateZoneInput](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateZone(r.Context(), zoneID, ownerScope(r), input)
	})
}

// CreateDriver adds a driver. Companies always create drivers for themselves.
func CreateDriver(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request) (any, error) {
		input, err := body[internaldelivery.DriverInput](r)
		if err != nil {
			return nil, err
		}
		if scope := ownerScope(r); scope != nil {
			input.CompanyID = *scope
		}
		if input.CompanyID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "company_id is required")
		}
		return svc.CreateDriver(r.Context(), input)
	})
}

func UpdateDriver(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		driverID, err := validators.ParseUUIDParam(r, "driverId", "driver id")
		if err != nil {
			return nil, err
		}
		input, err := body[internaldelivery.UpdateDriverInput](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateDriver(r.Context(), driverID, ownerScope(r), input)
	})
}

// UpdatePosition records the calling driver's location.
func UpdatePosition(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusAccepted, func(r *http.Request) (any, error) {
		driverID, err := validators.ParseUUIDParam(r, "driverId", "driver id")
		if err != nil {
			return nil, err
		}
		if middleware.SubjectIDFromContext(r.Context()) != driverID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "drivers may only report their own position")
		}
		pos, err := body[positionRequest](r)
		if err != nil {
			return nil, err
		}
		if err := svc.UpdatePosition(r.Context(), driverID, types.Location{Lat: pos.Lat, Lng: pos.Lng}); err != nil {
			return nil, err
		}
		return map[string]bool{"accepted": true}, nil
	})
}

func AssignDriver(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		detailID, err := validators.ParseUUIDParam(r, "detailId", "order detail id")
		if err != nil {
			return nil, err
		}
		payload, err := body[assignRequest](r)
		if err != nil {
			return nil, err
		}
		if err := svc.AssignDriver(r.Context(), detailID, payload.DriverID, ordercontrollers.ActorFromRequest(r)); err != nil {
			return nil, err
		}
		return assignedResponse{Assigned: []uuid.UUID{detailID}}, nil
	})
}

func AssignDriverMultiple(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		payload, err := body[assignManyRequest](r)
		if err != nil {
			return nil, err
		}
		assigned, err := svc.AssignDriverMultipleOrders(r.Context(), payload.DetailIDs, payload.DriverID, ordercontrollers.ActorFromRequest(r))
		if err != nil {
			return nil, err
		}
		if assigned == nil {
			assigned = []uuid.UUID{}
		}
		return assignedResponse{Assigned: assigned}, nil
	})
}

// ChangeStatus moves a delivery through the delivery status machine.
func ChangeStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request) (any, error) {
		detailID, err := validators.ParseUUIDParam(r, "detailId", "order detail id")
		if err != nil {
			return nil, err
		}
		payload, err := body[statusRequest](r)
		if err != nil {
			return nil, err
		}
		status, err := enums.ParseDeliveryStatus(payload.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		return svc.ChangeStatus(r.Context(), detailID, status, ordercontrollers.ActorFromRequest(r))
	})
}

// companyParam reads {companyId} and keeps company users on their own record.
func companyParam(r *http.Request) (uuid.UUID, error) {
	companyID, err := validators.ParseUUIDParam(r, "companyId", "company id")
	if err != nil {
		return uuid.Nil, err
	}
	if scope := ownerScope(r); scope != nil && *scope != companyID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "company does not belong to caller")
	}
	return companyID, nil
}

// ownerScope is the company a non-admin caller is confined to. Admins get nil.
func ownerScope(r *http.Request) *uuid.UUID {
	if middleware.RoleFromContext(r.Context()) == enums.ActorRoleAdmin {
		return nil
	}
	if tenantID := middleware.TenantIDFromContext(r.Context()); tenantID != nil {
		return tenantID
	}
	none := uuid.Nil
	return &none
}
