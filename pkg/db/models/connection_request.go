package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
)

// ConnectionRequest is a directed invitation from RequesterID to TargetID.
type ConnectionRequest struct {
	ID          uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	RequesterID uuid.UUID                    `gorm:"column:requester_id;type:uuid;not null;index"`
	TargetID    uuid.UUID                    `gorm:"column:target_id;type:uuid;not null;index"`
	State       enums.ConnectionRequestState `gorm:"column:state;type:connection_request_state;not null"`
	DecidedAt   *time.Time                   `gorm:"column:decided_at"`
	CreatedAt   time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
