package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	paginationpkg "github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

type fakeRepository struct {
	insertFn      func(ctx context.Context, notification *models.Notification) (bool, error)
	listFn        func(ctx context.Context, params listNotificationsParams) (paginationpkg.Page[models.Notification], error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Insert(ctx context.Context, notification *models.Notification) (bool, error) {
	if f.insertFn != nil {
		return f.insertFn(ctx, notification)
	}
	return true, nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) (paginationpkg.Page[models.Notification], error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return paginationpkg.Page[models.Notification]{}, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func TestService_ListNotifications(t *testing.T) {
	userID := uuid.New()
	first := models.Notification{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().Add(-time.Hour)}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) (paginationpkg.Page[models.Notification], error) {
			if params.UserID != userID {
				t.Fatalf("unexpected user %s", params.UserID)
			}
			if params.Limit != 1 || !params.UnreadOnly {
				t.Fatalf("unexpected params %+v", params)
			}
			return paginationpkg.Page[models.Notification]{
				Items:      []models.Notification{first},
				NextCursor: paginationpkg.EncodeCursor(paginationpkg.Cursor{CreatedAt: first.CreatedAt, ID: first.ID}),
			}, nil
		},
	}

	svc := newServiceWithRepo(repo)
	result, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 1, UnreadOnly: true})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	decoded, err := paginationpkg.ParseCursor(result.NextCursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.NextCursor, err)
	}
	if decoded.ID != first.ID {
		t.Fatalf("expected cursor id %s got %s", first.ID, decoded.ID)
	}
}

func TestService_ListNotificationsEmptyIsNotNil(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Items == nil {
		t.Fatal("expected empty slice")
	}
}

func TestService_ListNotificationsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeInvalidRequest {
		t.Fatalf("expected invalid request, got %s", code)
	}
}

func TestService_ListRequiresUser(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	if _, err := svc.List(context.Background(), ListParams{}); !pkgerrors.Is(err, pkgerrors.CodeInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	} else if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkAllRead(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 3, nil
		},
	}
	svc := newServiceWithRepo(repo)
	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected mark all read error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 updated rows, got %d", count)
	}
}

func TestService_MarkAllReadError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.MarkAllRead(context.Background(), uuid.New()); pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
