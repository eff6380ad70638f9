package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a shop, company or driver.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientRole enums.ActorRole        `gorm:"column:recipient_role;type:text;not null;index:idx_notifications_recipient" json:"recipient_role"`
	RecipientID   uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index:idx_notifications_recipient" json:"recipient_id"`
	Type          enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title         string                 `gorm:"column:title;not null" json:"title"`
	Message       string                 `gorm:"column:message;not null" json:"message"`
	Link          *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt        *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
