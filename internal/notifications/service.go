package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

// Service is the inbox API behind /notifications.
type Service interface {
	List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, recipient Recipient, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipient Recipient) (int64, error)
}

type ListParams struct {
	Recipient  Recipient
	UnreadOnly bool
	pagination.Params
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (r Recipient) validate() error {
	if r.ID == uuid.Nil || !r.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error) {
	if err := params.Recipient.validate(); err != nil {
		return pagination.Page[models.Notification]{}, err
	}
	page, err := s.repo.List(ctx, params.Recipient, params.UnreadOnly, params.Params)
	switch {
	case errors.Is(err, pagination.ErrInvalidCursor):
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	case err != nil:
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return page, nil
}

func (s *service) MarkRead(ctx context.Context, recipient Recipient, notificationID uuid.UUID) error {
	if err := recipient.validate(); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	found, err := s.repo.MarkRead(ctx, recipient, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead returns how many notifications flipped to read.
func (s *service) MarkAllRead(ctx context.Context, recipient Recipient) (int64, error) {
	if err := recipient.validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, recipient, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
