package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/bazaarhq/bazaar-backend/pkg/auth"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type accountRepository interface {
	FindCompanyByEmail(ctx context.Context, email string) (*models.Company, error)
	FindDriverByEmail(ctx context.Context, email string) (*models.Driver, error)
}

type service struct {
	accounts accountRepository
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Accounts  accountRepository
	JWTConfig config.JWTConfig
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	return &service{
		accounts: params.Accounts,
		jwtCfg:   params.JWTConfig,
		now:      time.Now,
	}, nil
}

type principal struct {
	subjectID uuid.UUID
	tenantID  uuid.UUID
	role      enums.ActorRole
	hash      string
	active    bool
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	p, err := s.lookup(ctx, req.Account, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, err
	}

	valid, err := security.VerifyPassword(req.Password, p.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !p.active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	tenantID := p.tenantID
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		SubjectID: p.subjectID,
		Role:      p.role,
		TenantID:  &tenantID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{
		AccessToken: token,
		SubjectID:   p.subjectID,
		Role:        p.role,
		TenantID:    tenantID,
	}, nil
}

func (s *service) lookup(ctx context.Context, account, email string) (*principal, error) {
	switch account {
	case AccountCompany:
		company, err := s.accounts.FindCompanyByEmail(ctx, email)
		if err != nil {
			return nil, wrapLookup(err, "lookup company")
		}
		return &principal{
			subjectID: company.ID,
			tenantID:  company.ID,
			role:      enums.ActorRoleCompany,
			hash:      company.PasswordHash,
			active:    company.Activated,
		}, nil
	case AccountDriver:
		driver, err := s.accounts.FindDriverByEmail(ctx, email)
		if err != nil {
			return nil, wrapLookup(err, "lookup driver")
		}
		return &principal{
			subjectID: driver.ID,
			tenantID:  driver.CompanyID,
			role:      enums.ActorRoleDriver,
			hash:      driver.PasswordHash,
			active:    driver.Activated,
		}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown account type")
	}
}

func wrapLookup(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
