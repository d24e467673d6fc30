package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Post struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID uuid.UUID `gorm:"column:creator_id;type:uuid;not null;index"`
	Content   string    `gorm:"column:content;type:text;not null"`
	LikeCount int       `gorm:"column:like_count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PostLike records that UserID liked PostID. One row per (post, user).
type PostLike struct {
	PostID    uuid.UUID `gorm:"column:post_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
