package delivery

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/security"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// CreateDriver adds a driver to a company. When no password is supplied a
// temporary one is generated and returned once.
func (s *Service) CreateDriver(ctx context.Context, input DriverInput) (*CreatedDriver, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id is required")
	}

	password := input.Password
	generated := ""
	if password == "" {
		var err error
		generated, err = security.GenerateTempPassword(security.DriverPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password = generated
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}

	driver := &models.Driver{
		CompanyID:    input.CompanyID,
		Email:        email,
		PasswordHash: hash,
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		AvatarURL:    input.AvatarURL,
		Address:      input.Address,
		City:         input.City,
		State:        input.State,
		Country:      input.Country,
		ZipCode:      input.ZipCode,
		Activated:    true,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindCompany(ctx, input.CompanyID); err != nil {
			return mapNotFound(err, "Company not found", "load company")
		}
		taken, err := repo.DriverEmailExists(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check driver email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, msgEmailTaken)
		}
		if err := repo.CreateDriver(ctx, driver); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create driver")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CreatedDriver{Driver: driver, TemporaryPassword: generated}, nil
}

// UpdateDriver patches a driver. A non-nil companyID restricts the edit to
// that company's drivers.
func (s *Service) UpdateDriver(ctx context.Context, driverID uuid.UUID, companyID *uuid.UUID, input UpdateDriverInput) (*models.Driver, error) {
	driver, err := s.repo.FindDriver(ctx, driverID)
	if err != nil {
		return nil, mapNotFound(err, "Driver not found", "load driver")
	}
	if companyID != nil && driver.CompanyID != *companyID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "driver belongs to another company")
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
		}
		driver.PasswordHash = hash
	}
	setString(&driver.PhoneNumber, input.PhoneNumber)
	setString(&driver.FirstName, input.FirstName)
	setString(&driver.LastName, input.LastName)
	setString(&driver.AvatarURL, input.AvatarURL)
	setString(&driver.Address, input.Address)
	setString(&driver.City, input.City)
	setString(&driver.State, input.State)
	setString(&driver.Country, input.Country)
	setString(&driver.ZipCode, input.ZipCode)
	if input.Activated != nil {
		driver.Activated = *input.Activated
	}
	if err := s.repo.SaveDriver(ctx, driver); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver")
	}
	return driver, nil
}

// UpdatePosition records a position report as an event. The worker applies
// it with ApplyPosition.
func (s *Service) UpdatePosition(ctx context.Context, driverID uuid.UUID, location types.Location) error {
	if location.Lat < -90 || location.Lat > 90 || location.Lng < -180 || location.Lng > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "location is out of range")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		driver, err := s.repo.WithTx(tx).FindDriver(ctx, driverID)
		if err != nil {
			return mapNotFound(err, "Driver not found", "load driver")
		}
		now := s.now()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDriverPositionUpdated,
			AggregateType: enums.AggregateDriver,
			AggregateID:   driver.ID,
			Actor:         &outbox.ActorRef{ID: driver.ID, Role: enums.ActorRoleDriver},
			OccurredAt:    now,
			Data: payloads.DriverPositionUpdatedEvent{
				DriverID:  driver.ID,
				CompanyID: driver.CompanyID,
				Location:  location,
				At:        now,
			},
		})
	})
}

// ApplyPosition stores a reported position and returns the details the
// driver is still carrying, so callers can fan the update out to them.
func (s *Service) ApplyPosition(ctx context.Context, event payloads.DriverPositionUpdatedEvent) ([]models.OrderDetail, error) {
	updated, err := s.repo.UpdateDriverLocation(ctx, event.DriverID, event.Location)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store driver location")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Driver not found")
	}
	details, err := s.repo.ActiveDetailsForDriver(ctx, event.DriverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active deliveries")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"driver_id":         event.DriverID.String(),
			"active_deliveries": len(details),
		})
		s.logg.Info(logCtx, "driver position applied")
	}
	return details, nil
}
