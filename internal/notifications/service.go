package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

// Service defines the inbox list/read operations.
type Service interface {
	List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error) {
	if params.UserID == uuid.Nil {
		return pagination.Page[models.Notification]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return pagination.Page[models.Notification]{}, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	page, err := s.repo.List(ctx, query)
	if err != nil {
		return pagination.Page[models.Notification]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications")
	}
	if page.Items == nil {
		page.Items = []models.Notification{}
	}
	return page, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notifications read")
	}
	return count, nil
}
