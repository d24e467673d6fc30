package posts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

// Repository exposes persistence for posts and likes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

type listByCreatorParams struct {
	CreatorID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *Repository) ListByCreator(ctx context.Context, params listByCreatorParams) (pagination.Page[models.Post], error) {
	query := r.db.WithContext(ctx).Model(&models.Post{}).Where("creator_id = ?", params.CreatorID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Post
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return pagination.Page[models.Post]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(p models.Post) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// InsertLike reports false when the user already liked the post.
func (r *Repository) InsertLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostLike{PostID: postID, UserID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteLike reports false when there was no like to remove.
func (r *Repository) DeleteLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostLike{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdjustLikeCount adds delta to the cached counter, never going below zero.
func (r *Repository) AdjustLikeCount(ctx context.Context, postID uuid.UUID, delta int) error {
	expr := gorm.Expr("like_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN like_count + ? < 0 THEN 0 ELSE like_count + ? END", delta, delta)
	}
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("like_count", expr).Error
}
