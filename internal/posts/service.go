// Package posts owns post authoring and likes. Creating and liking a post
// write their outbox event in the same transaction as the row.
package posts

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

// MaxContentLength is measured in runes.
const MaxContentLength = 3000

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Post, error)
	Get(ctx context.Context, postID uuid.UUID) (*models.Post, error)
	ListByUser(ctx context.Context, params ListParams) (pagination.Page[models.Post], error)
	Like(ctx context.Context, postID, userID uuid.UUID) error
	Unlike(ctx context.Context, postID, userID uuid.UUID) error
}

type CreateInput struct {
	CreatorID uuid.UUID
	Content   string
}

type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

type service struct {
	tx     db.TxRunner
	repo   *Repository
	outbox outbox.Emitter
}

func NewService(tx db.TxRunner, repo *Repository, emitter outbox.Emitter) (Service, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if repo == nil {
		return nil, errors.New("posts repository required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &service{tx: tx, repo: repo, outbox: emitter}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Post, error) {
	if input.CreatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "creator id required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "content required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "content too long").
			WithDetails(map[string]any{"max_length": MaxContentLength})
	}

	post := &models.Post{CreatorID: input.CreatorID, Content: content}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, post); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create post")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPostCreated,
			AggregateType: enums.AggregatePost,
			AggregateID:   post.ID,
			PartitionKey:  outbox.EntityKey(post.ID),
			Actor:         &outbox.ActorRef{UserID: input.CreatorID},
			Data: payloads.PostCreatedEvent{
				PostID:    post.ID,
				CreatorID: post.CreatorID,
				Content:   post.Content,
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "create post")
	}
	return post, nil
}

func (s *service) Get(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	if postID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "post id required")
	}
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "load post")
	}
	return post, nil
}

func (s *service) ListByUser(ctx context.Context, params ListParams) (pagination.Page[models.Post], error) {
	if params.UserID == uuid.Nil {
		return pagination.Page[models.Post]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}
	query := listByCreatorParams{CreatorID: params.UserID, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return pagination.Page[models.Post]{}, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	page, err := s.repo.ListByCreator(ctx, query)
	if err != nil {
		return pagination.Page[models.Post]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list posts")
	}
	if page.Items == nil {
		page.Items = []models.Post{}
	}
	return page, nil
}

func (s *service) Like(ctx context.Context, postID, userID uuid.UUID) error {
	if postID == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "post id and user id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := repo.FindByID(ctx, postID)
		if err != nil {
			return notFoundOr(err, "load post")
		}
		inserted, err := repo.InsertLike(ctx, postID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert like")
		}
		if !inserted {
			return pkgerrors.New(pkgerrors.CodeInvalidRequest, "post already liked")
		}
		if err := repo.AdjustLikeCount(ctx, postID, 1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update like count")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPostLiked,
			AggregateType: enums.AggregatePost,
			AggregateID:   post.ID,
			PartitionKey:  outbox.EntityKey(post.ID),
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.PostLikedEvent{
				PostID:        post.ID,
				CreatorID:     post.CreatorID,
				LikedByUserID: userID,
			},
		})
	})
	if err != nil {
		return asServiceError(err, "like post")
	}
	return nil
}

func (s *service) Unlike(ctx context.Context, postID, userID uuid.UUID) error {
	if postID == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "post id and user id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		removed, err := repo.DeleteLike(ctx, postID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete like")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeInvalidRequest, "post not liked")
		}
		if err := repo.AdjustLikeCount(ctx, postID, -1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update like count")
		}
		return nil
	})
	if err != nil {
		return asServiceError(err, "unlike post")
	}
	return nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
