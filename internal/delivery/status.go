package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
)

// StatusText is the customer-facing wording for a delivery status.
func StatusText(status enums.DeliveryStatus) string {
	switch status {
	case enums.DeliveryStatusProcessing:
		return "Items ready for pick up"
	case enums.DeliveryStatusPickedUp:
		return "Items picked up"
	case enums.DeliveryStatusOnTheWay:
		return "Items on the way"
	case enums.DeliveryStatusDelivered:
		return "Delivered"
	case enums.DeliveryStatusCancelled:
		return "Cancelled"
	case enums.DeliveryStatusPostponed:
		return "Postponed"
	default:
		return string(status)
	}
}

// AssignDriver hands one order detail to a driver.
func (s *Service) AssignDriver(ctx context.Context, detailID, driverID uuid.UUID, actor orders.Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		detail, err := repo.FindDetail(ctx, detailID)
		if err != nil {
			return mapNotFound(err, "Order not found!", "load order detail")
		}
		driver, err := s.assignableDriver(ctx, repo, driverID, actor)
		if err != nil {
			return err
		}
		if err := checkCompany(detail, actor); err != nil {
			return err
		}
		if err := s.assign(ctx, tx, repo, detail, driver, actor); err != nil {
			return err
		}
		return s.emitAssigned(ctx, tx, driver, []uuid.UUID{detail.ID}, actor)
	})
}

// AssignDriverMultipleOrders hands several details to one driver. Unknown
// details are skipped. It returns the ids actually assigned.
func (s *Service) AssignDriverMultipleOrders(ctx context.Context, detailIDs []uuid.UUID, driverID uuid.UUID, actor orders.Actor) ([]uuid.UUID, error) {
	if len(detailIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order detail ids are required")
	}
	var assigned []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		driver, err := s.assignableDriver(ctx, repo, driverID, actor)
		if err != nil {
			return err
		}
		for _, id := range detailIDs {
			detail, err := repo.FindDetail(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order detail")
			}
			if checkCompany(detail, actor) != nil {
				continue
			}
			if err := s.assign(ctx, tx, repo, detail, driver, actor); err != nil {
				return err
			}
			assigned = append(assigned, detail.ID)
		}
		if len(assigned) == 0 {
			return nil
		}
		return s.emitAssigned(ctx, tx, driver, assigned, actor)
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *Service) assignableDriver(ctx context.Context, repo Repository, driverID uuid.UUID, actor orders.Actor) (*models.Driver, error) {
	driver, err := repo.FindDriver(ctx, driverID)
	if err != nil {
		return nil, mapNotFound(err, "Driver not found!", "load driver")
	}
	if actor.Role == enums.ActorRoleCompany && actor.TenantID != nil && driver.CompanyID != *actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "driver belongs to another company")
	}
	return driver, nil
}

func (s *Service) assign(ctx context.Context, tx *gorm.DB, repo Repository, detail *models.OrderDetail, driver *models.Driver, actor orders.Actor) error {
	if _, err := repo.AssignDriver(ctx, detail.ID, driver.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
	}
	old := map[string]any{}
	if detail.DriverID != nil {
		old["driver_id"] = detail.DriverID.String()
	}
	detailID := detail.ID
	return s.orderLog.AddLog(ctx, tx, orders.LogEntry{
		OrderID:       detail.OrderID,
		OrderDetailID: &detailID,
		EventType:     orders.LogEventDriverAssigned,
		ChangedBy:     actor.ID,
		OldData:       old,
		NewData:       map[string]any{"driver_id": driver.ID.String()},
	})
}

func (s *Service) emitAssigned(ctx context.Context, tx *gorm.DB, driver *models.Driver, detailIDs []uuid.UUID, actor orders.Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDriverAssigned,
		AggregateType: enums.AggregateDriver,
		AggregateID:   driver.ID,
		Actor:         actorRef(actor),
		OccurredAt:    s.now(),
		Data: payloads.DriverAssignedEvent{
			DriverID:       driver.ID,
			CompanyID:      driver.CompanyID,
			OrderDetailIDs: detailIDs,
		},
	})
}

// ChangeStatus moves a detail through the delivery lifecycle. Companies may
// only touch their own deliveries and drivers only those assigned to them.
func (s *Service) ChangeStatus(ctx context.Context, detailID uuid.UUID, status enums.DeliveryStatus, actor orders.Actor) (*models.OrderDetail, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery status %q", status)
	}

	var detail *models.OrderDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		detail, err = repo.FindDetail(ctx, detailID)
		if err != nil {
			return mapNotFound(err, "Order not found!", "load order detail")
		}
		if detail.DeliveryCompanyID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "order detail has no delivery company")
		}
		if err := checkCompany(detail, actor); err != nil {
			return err
		}
		if actor.Role == enums.ActorRoleDriver && (detail.DriverID == nil || actor.ID == nil || *detail.DriverID != *actor.ID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order detail is not assigned to this driver")
		}

		from := detail.DeliveryStatus
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Cannot change delivery status from %s to %s", from, status)
		}
		moved, err := repo.TransitionDeliveryStatus(ctx, detail.ID, from, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery status changed concurrently")
		}
		detail.DeliveryStatus = status

		id := detail.ID
		if err := s.orderLog.AddLog(ctx, tx, orders.LogEntry{
			OrderID:       detail.OrderID,
			OrderDetailID: &id,
			EventType:     orders.LogEventDeliveryStatus,
			ChangedBy:     actor.ID,
			OldData:       map[string]any{"delivery_status": string(from)},
			NewData:       map[string]any{"delivery_status": string(status)},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateOrderDetail,
			AggregateID:   detail.ID,
			Actor:         actorRef(actor),
			OccurredAt:    s.now(),
			Data: payloads.DeliveryStatusChangedEvent{
				OrderID:       detail.OrderID,
				OrderDetailID: detail.ID,
				CompanyID:     *detail.DeliveryCompanyID,
				DriverID:      detail.DriverID,
				CustomerID:    detail.CustomerID,
				Email:         detail.Email,
				TrackingCode:  detail.TrackingCode,
				From:          from,
				To:            status,
				StatusText:    StatusText(status),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// checkCompany rejects company actors working on another company's delivery.
func checkCompany(detail *models.OrderDetail, actor orders.Actor) error {
	if actor.Role != enums.ActorRoleCompany && actor.Role != enums.ActorRoleDriver {
		return nil
	}
	if actor.TenantID == nil || detail.DeliveryCompanyID == nil || *detail.DeliveryCompanyID != *actor.TenantID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order detail belongs to another delivery company")
	}
	return nil
}

func actorRef(actor orders.Actor) *outbox.ActorRef {
	if actor.ID == nil {
		return nil
	}
	return &outbox.ActorRef{ID: *actor.ID, Role: actor.Role}
}
