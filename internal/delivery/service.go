// Package delivery manages delivery companies, their zones and drivers, and
// the delivery side of order details.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderLog appends to an order's audit trail inside the caller's transaction.
type orderLog interface {
	AddLog(ctx context.Context, tx *gorm.DB, entry orders.LogEntry) error
}

const msgEmailTaken = "This email has already token"

// Service owns delivery companies, zones, drivers and delivery status.
type Service struct {
	tx          txRunner
	repo        Repository
	outbox      outboxPublisher
	orderLog    orderLog
	cfg         config.DeliveryConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the delivery service.
func NewService(
	tx txRunner,
	repo Repository,
	publisher outboxPublisher,
	logs orderLog,
	cfg config.DeliveryConfig,
	passwordCfg config.PasswordConfig,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logs == nil {
		return nil, fmt.Errorf("order log required")
	}
	return &Service{
		tx:          tx,
		repo:        repo,
		outbox:      publisher,
		orderLog:    logs,
		cfg:         cfg,
		passwordCfg: passwordCfg,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register signs up a delivery company. It starts unverified.
func (s *Service) Register(ctx context.Context, input CompanyInput) (*models.Company, error) {
	input.Verified = false
	return s.createCompany(ctx, input)
}

// Create adds a company on behalf of an admin, optionally pre-verified.
func (s *Service) Create(ctx context.Context, input CompanyInput) (*models.Company, error) {
	return s.createCompany(ctx, input)
}

func (s *Service) createCompany(ctx context.Context, input CompanyInput) (*models.Company, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	commission := decimal.NewFromFloat(s.cfg.DefaultCommission)
	if input.SiteCommission != nil {
		commission = *input.SiteCommission
	}
	if commission.IsNegative() || commission.GreaterThan(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "site commission must be between 0 and 1")
	}
	price := decimal.NewFromFloat(s.cfg.DefaultDeliveryPrice)
	if input.DeliveryPrice != nil {
		price = *input.DeliveryPrice
	}
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery price must not be negative")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}

	company := &models.Company{
		Email:          email,
		PasswordHash:   hash,
		PhoneNumber:    strings.TrimSpace(input.PhoneNumber),
		Type:           "delivery",
		Name:           strings.TrimSpace(input.Name),
		LogoURL:        input.LogoURL,
		Address:        input.Address,
		City:           input.City,
		State:          input.State,
		Country:        input.Country,
		ZipCode:        input.ZipCode,
		Activated:      true,
		Verified:       input.Verified,
		SiteCommission: commission,
		DeliveryPrice:  price,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.CompanyEmailExists(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check company email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, msgEmailTaken)
		}
		if err := repo.CreateCompany(ctx, company); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create company")
		}
		return s.seedZones(ctx, repo, company.ID)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"company_id": company.ID.String(),
			"verified":   company.Verified,
		})
		s.logg.Info(logCtx, "delivery company created")
	}
	return company, nil
}

// seedZones copies the zones of an existing company, or falls back to the
// built-in zone table at the default delivery price.
func (s *Service) seedZones(ctx context.Context, repo Repository, companyID uuid.UUID) error {
	templateID, err := repo.ZoneTemplateCompany(ctx, companyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find zone template")
	}

	var zones []models.DeliveryZone
	if templateID != nil {
		source, err := repo.ListZones(ctx, *templateID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load template zones")
		}
		zones = copyZones(companyID, source)
	} else {
		zones, err = defaultZones(companyID, decimal.NewFromFloat(s.cfg.DefaultDeliveryPrice))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default zones")
		}
	}
	if err := repo.CreateZones(ctx, zones); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed zones")
	}
	return nil
}

// GetCompany loads a company by id.
func (s *Service) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.FindCompany(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "Company not found", "load company")
	}
	return company, nil
}

// UpdateCompany patches a company and emits company_verified when the
// verified flag flips on.
func (s *Service) UpdateCompany(ctx context.Context, id uuid.UUID, input UpdateCompanyInput) (*models.Company, error) {
	var company *models.Company
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		company, err = repo.FindCompany(ctx, id)
		if err != nil {
			return mapNotFound(err, "Company not found", "load company")
		}
		justVerified := !company.Verified && input.Verified != nil && *input.Verified

		if err := s.applyCompanyPatch(company, input); err != nil {
			return err
		}
		if err := repo.SaveCompany(ctx, company); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update company")
		}
		if !justVerified {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCompanyVerified,
			AggregateType: enums.AggregateCompany,
			AggregateID:   company.ID,
			OccurredAt:    s.now(),
			Data: payloads.CompanyVerifiedEvent{
				CompanyID: company.ID,
				Name:      company.Name,
				Email:     company.Email,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *Service) applyCompanyPatch(company *models.Company, input UpdateCompanyInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		company.Name = name
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
		}
		company.PasswordHash = hash
	}
	if input.SiteCommission != nil {
		if input.SiteCommission.IsNegative() || input.SiteCommission.GreaterThan(decimal.NewFromInt(1)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "site commission must be between 0 and 1")
		}
		company.SiteCommission = *input.SiteCommission
	}
	if input.DeliveryPrice != nil {
		if input.DeliveryPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery price must not be negative")
		}
		company.DeliveryPrice = *input.DeliveryPrice
	}
	setString(&company.PhoneNumber, input.PhoneNumber)
	setString(&company.LogoURL, input.LogoURL)
	setString(&company.Address, input.Address)
	setString(&company.City, input.City)
	setString(&company.State, input.State)
	setString(&company.Country, input.Country)
	setString(&company.ZipCode, input.ZipCode)
	if input.Activated != nil {
		company.Activated = *input.Activated
	}
	if input.Verified != nil {
		company.Verified = *input.Verified
	}
	return nil
}

// CreateZone adds a zone to a company.
func (s *Service) CreateZone(ctx context.Context, companyID uuid.UUID, input ZoneInput) (*models.DeliveryZone, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.City) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "zone name and city are required")
	}
	if input.DeliveryPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery price must not be negative")
	}
	if _, err := s.repo.FindCompany(ctx, companyID); err != nil {
		return nil, mapNotFound(err, "Company not found", "load company")
	}
	zone := models.DeliveryZone{
		CompanyID:     companyID,
		Name:          strings.TrimSpace(input.Name),
		City:          strings.TrimSpace(input.City),
		Areas:         cleanAreas(input.Areas),
		DeliveryPrice: input.DeliveryPrice.Round(2),
	}
	zones := []models.DeliveryZone{zone}
	if err := s.repo.CreateZones(ctx, zones); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create zone")
	}
	return &zones[0], nil
}

func (s *Service) ListZones(ctx context.Context, companyID uuid.UUID) ([]models.DeliveryZone, error) {
	zones, err := s.repo.ListZones(ctx, companyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list zones")
	}
	return zones, nil
}

// UpdateZone patches a zone. A non-nil companyID restricts the edit to that
// company's zones.
func (s *Service) UpdateZone(ctx context.Context, zoneID uuid.UUID, companyID *uuid.UUID, input UpdateZoneInput) (*models.DeliveryZone, error) {
	zone, err := s.repo.FindZone(ctx, zoneID)
	if err != nil {
		return nil, mapNotFound(err, "Zone not found", "load zone")
	}
	if companyID != nil && zone.CompanyID != *companyID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "zone belongs to another company")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		zone.Name = strings.TrimSpace(*input.Name)
	}
	if input.City != nil && strings.TrimSpace(*input.City) != "" {
		zone.City = strings.TrimSpace(*input.City)
	}
	if input.Areas != nil {
		zone.Areas = cleanAreas(input.Areas)
	}
	if input.DeliveryPrice != nil {
		if input.DeliveryPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery price must not be negative")
		}
		zone.DeliveryPrice = input.DeliveryPrice.Round(2)
	}
	if err := s.repo.SaveZone(ctx, zone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update zone")
	}
	return zone, nil
}

// FindCompany and FindZone let the order service resolve delivery choices.
func (s *Service) FindCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return s.repo.FindCompany(ctx, id)
}

func (s *Service) FindZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	return s.repo.FindZone(ctx, id)
}

func cleanAreas(areas []string) []string {
	out := make([]string, 0, len(areas))
	seen := map[string]bool{}
	for _, area := range areas {
		area = strings.TrimSpace(area)
		if area == "" || seen[strings.ToLower(area)] {
			continue
		}
		seen[strings.ToLower(area)] = true
		out = append(out, area)
	}
	return out
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
