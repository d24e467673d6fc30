package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
)

// Notification stores an in-app notification addressed to a single user.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_notifications_event_user,priority:2"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null"`
	Message   string                 `gorm:"type:text;not null"`
	EventID   *uuid.UUID             `gorm:"column:event_id;type:uuid;uniqueIndex:ux_notifications_event_user,priority:1"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
