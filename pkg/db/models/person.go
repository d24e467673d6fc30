package models

import (
	"time"

	"github.com/google/uuid"
)

// Person is the graph-side projection of a user: just enough to render a
// first-degree connection list.
type Person struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Person) TableName() string {
	return "people"
}
