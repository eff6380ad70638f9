package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository looks up password-bearing accounts.
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

func (r *repository) FindCompanyByEmail(ctx context.Context, email string) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) FindDriverByEmail(ctx context.Context, email string) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}
