package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

// Recipient is an inbox. Shops and companies share one inbox per tenant;
// drivers, customers and admins read their own.
type Recipient struct {
	Role enums.ActorRole
	ID   uuid.UUID
}

// Repository stores in-app notifications and resolves the addresses the
// consumer mails.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, inbox Recipient, unreadOnly bool, params pagination.Params) (pagination.Page[models.Notification], error)
	// MarkRead reports whether the notification exists in the inbox. Marking
	// an already read notification succeeds without touching read_at.
	MarkRead(ctx context.Context, inbox Recipient, id uuid.UUID, now time.Time) (bool, error)
	MarkAllRead(ctx context.Context, inbox Recipient, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

	ShopEmail(ctx context.Context, id uuid.UUID) (string, error)
	CompanyEmail(ctx context.Context, id uuid.UUID) (string, error)
	DriverEmail(ctx context.Context, id uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) inbox(ctx context.Context, to Recipient) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_role = ? AND recipient_id = ?", to.Role, to.ID)
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) List(ctx context.Context, to Recipient, unreadOnly bool, params pagination.Params) (pagination.Page[models.Notification], error) {
	q := r.inbox(ctx, to)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	return pagination.Fetch(q, params, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
}

func (r *repository) MarkRead(ctx context.Context, to Recipient, id uuid.UUID, now time.Time) (bool, error) {
	res := r.inbox(ctx, to).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", now)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.RowsAffected > 0, res.Error
	}

	var n int64
	err := r.inbox(ctx, to).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *repository) MarkAllRead(ctx context.Context, to Recipient, now time.Time) (int64, error) {
	res := r.inbox(ctx, to).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore drops read notifications created before cutoff. tx may be nil.
func (r *repository) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *repository) ShopEmail(ctx context.Context, id uuid.UUID) (string, error) {
	return r.email(ctx, &models.Shop{}, id)
}

func (r *repository) CompanyEmail(ctx context.Context, id uuid.UUID) (string, error) {
	return r.email(ctx, &models.Company{}, id)
}

func (r *repository) DriverEmail(ctx context.Context, id uuid.UUID) (string, error) {
	return r.email(ctx, &models.Driver{}, id)
}

// email returns gorm.ErrRecordNotFound when the row is missing.
func (r *repository) email(ctx context.Context, model any, id uuid.UUID) (string, error) {
	var emails []string
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Limit(1).Pluck("email", &emails).Error; err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return emails[0], nil
}
