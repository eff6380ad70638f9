package delivery

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

// Repository persists companies, zones and drivers, and the delivery columns
// of order details.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CompanyEmailExists(ctx context.Context, email string) (bool, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	FindCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	SaveCompany(ctx context.Context, company *models.Company) error

	CreateZones(ctx context.Context, zones []models.DeliveryZone) error
	FindZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
	ListZones(ctx context.Context, companyID uuid.UUID) ([]models.DeliveryZone, error)
	SaveZone(ctx context.Context, zone *models.DeliveryZone) error
	ZoneTemplateCompany(ctx context.Context, exclude uuid.UUID) (*uuid.UUID, error)

	DriverEmailExists(ctx context.Context, email string) (bool, error)
	CreateDriver(ctx context.Context, driver *models.Driver) error
	FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	SaveDriver(ctx context.Context, driver *models.Driver) error
	UpdateDriverLocation(ctx context.Context, id uuid.UUID, location types.Location) (bool, error)

	FindDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error)
	AssignDriver(ctx context.Context, detailID, driverID uuid.UUID) (bool, error)
	TransitionDeliveryStatus(ctx context.Context, detailID uuid.UUID, from, to enums.DeliveryStatus) (bool, error)
	ActiveDetailsForDriver(ctx context.Context, driverID uuid.UUID) ([]models.OrderDetail, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CompanyEmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateCompany(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *repository) FindCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) SaveCompany(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}

func (r *repository) CreateZones(ctx context.Context, zones []models.DeliveryZone) error {
	if len(zones) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&zones).Error
}

func (r *repository) FindZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&zone).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *repository) ListZones(ctx context.Context, companyID uuid.UUID) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("city ASC, name ASC").
		Find(&zones).Error
	if err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *repository) SaveZone(ctx context.Context, zone *models.DeliveryZone) error {
	return r.db.WithContext(ctx).Save(zone).Error
}

// ZoneTemplateCompany returns the oldest company other than exclude that has
// zones configured, or nil.
func (r *repository) ZoneTemplateCompany(ctx context.Context, exclude uuid.UUID) (*uuid.UUID, error) {
	var zone models.DeliveryZone
	err := r.db.WithContext(ctx).
		Where("company_id <> ?", exclude).
		Order("created_at ASC, id ASC").
		First(&zone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &zone.CompanyID, nil
}

func (r *repository) DriverEmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateDriver(ctx context.Context, driver *models.Driver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

func (r *repository) FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) SaveDriver(ctx context.Context, driver *models.Driver) error {
	return r.db.WithContext(ctx).Save(driver).Error
}

func (r *repository) UpdateDriverLocation(ctx context.Context, id uuid.UUID, location types.Location) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", id).
		Select("last_location").
		Updates(&models.Driver{LastLocation: &location})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&detail).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *repository) AssignDriver(ctx context.Context, detailID, driverID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id = ?", detailID).
		Update("driver_id", driverID)
	return res.RowsAffected == 1, res.Error
}

// TransitionDeliveryStatus updates the status only while it still equals from.
func (r *repository) TransitionDeliveryStatus(ctx context.Context, detailID uuid.UUID, from, to enums.DeliveryStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id = ? AND delivery_status = ?", detailID, from).
		Update("delivery_status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ActiveDetailsForDriver(ctx context.Context, driverID uuid.UUID) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Where("delivery_status IN ?", enums.ActiveDeliveryStatuses).
		Order("created_at ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}
