package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// SettingSiteCommission is the site_settings key holding the default commission rate.
const SettingSiteCommission = "siteCommission"

// Service answers pricing lookups that sit on top of the catalog tables.
type Service struct {
	repo Repository
	cfg  config.PricingConfig
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo Repository, cfg config.PricingConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{
		repo: repo,
		cfg:  cfg,
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Repository exposes the underlying repository for transactional callers.
func (s *Service) Repository() Repository {
	return s.repo
}

// GetCommission returns the marketplace commission rate. A missing or
// out-of-range siteCommission setting falls back to the configured fee.
func (s *Service) GetCommission(ctx context.Context) decimal.Decimal {
	fallback := decimal.NewFromFloat(s.cfg.CommissionFee)

	setting, err := s.repo.FindSetting(ctx, SettingSiteCommission)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.logg != nil {
			s.logg.Error(ctx, "load site commission", err)
		}
		return fallback
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(setting.Value))
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fallback
	}
	return rate
}

// ShopCommission prefers the shop's own rate over the marketplace default.
func (s *Service) ShopCommission(ctx context.Context, shop *models.Shop) decimal.Decimal {
	if shop != nil && shop.Commission != nil && !shop.Commission.IsNegative() {
		return *shop.Commission
	}
	return s.GetCommission(ctx)
}

// CheckValid returns the coupon for code when it can be redeemed at shopID
// right now, or nil when it cannot.
func (s *Service) CheckValid(ctx context.Context, repo Repository, shopID uuid.UUID, code string) (*models.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	if repo == nil {
		repo = s.repo
	}
	coupon, err := repo.FindCoupon(ctx, shopID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !Redeemable(coupon, s.now()) {
		return nil, nil
	}
	return coupon, nil
}

// Redeemable reports whether the coupon is active, inside its window and
// under its usage limit. A zero limit means unlimited.
func Redeemable(c *models.Coupon, now time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	if c.StartTime != nil && now.Before(*c.StartTime) {
		return false
	}
	if c.ExpiredTime != nil && !now.Before(*c.ExpiredTime) {
		return false
	}
	if c.Limit > 0 && c.UsedCount >= c.Limit {
		return false
	}
	return c.DiscountPercentage.IsPositive()
}

// DigitalFile loads a stored digital asset.
func (s *Service) DigitalFile(ctx context.Context, id uuid.UUID) (*models.DigitalFile, error) {
	file, err := s.repo.FindDigitalFile(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No file found!")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load digital file")
	}
	return file, nil
}
