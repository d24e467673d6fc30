package posts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func newPostsService(t *testing.T) (Service, *gorm.DB, *recordingEmitter) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Post{}, &models.PostLike{}))

	emitter := &recordingEmitter{}
	svc, err := NewService(db.FromGorm(conn), NewRepository(conn), emitter)
	require.NoError(t, err)
	return svc, conn, emitter
}

func TestCreatePostEmitsPostCreated(t *testing.T) {
	svc, _, emitter := newPostsService(t)
	creator := uuid.New()
	content := gofakeit.Sentence(12)

	post, err := svc.Create(context.Background(), CreateInput{CreatorID: creator, Content: "  " + content + " "})
	require.NoError(t, err)
	require.Equal(t, content, post.Content)

	require.Len(t, emitter.events, 1)
	event := emitter.events[0]
	require.Equal(t, enums.EventPostCreated, event.EventType)
	require.Equal(t, outbox.EntityKey(post.ID), event.PartitionKey)
	require.Equal(t, payloads.PostCreatedEvent{PostID: post.ID, CreatorID: creator, Content: content}, event.Data)

	got, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)
}

func TestCreatePostValidation(t *testing.T) {
	svc, _, emitter := newPostsService(t)
	for name, input := range map[string]CreateInput{
		"missing creator": {Content: "hello"},
		"blank content":   {CreatorID: uuid.New(), Content: "   "},
		"too long":        {CreatorID: uuid.New(), Content: strings.Repeat("x", MaxContentLength+1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), input)
			require.Equal(t, pkgerrors.CodeInvalidRequest, pkgerrors.CodeOf(err))
		})
	}
	require.Empty(t, emitter.events)
}

func TestGetMissingPost(t *testing.T) {
	svc, _, _ := newPostsService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestLikeAndUnlike(t *testing.T) {
	svc, conn, emitter := newPostsService(t)
	ctx := context.Background()
	creator, fan := uuid.New(), uuid.New()

	post, err := svc.Create(ctx, CreateInput{CreatorID: creator, Content: gofakeit.Sentence(5)})
	require.NoError(t, err)

	require.NoError(t, svc.Like(ctx, post.ID, fan))
	err = svc.Like(ctx, post.ID, fan)
	require.Equal(t, pkgerrors.CodeInvalidRequest, pkgerrors.CodeOf(err))

	require.Len(t, emitter.events, 2)
	liked := emitter.events[1]
	require.Equal(t, enums.EventPostLiked, liked.EventType)
	require.Equal(t, outbox.EntityKey(post.ID), liked.PartitionKey)
	require.Equal(t, payloads.PostLikedEvent{PostID: post.ID, CreatorID: creator, LikedByUserID: fan}, liked.Data)

	var stored models.Post
	require.NoError(t, conn.First(&stored, "id = ?", post.ID).Error)
	require.Equal(t, 1, stored.LikeCount)

	require.NoError(t, svc.Unlike(ctx, post.ID, fan))
	err = svc.Unlike(ctx, post.ID, fan)
	require.Equal(t, pkgerrors.CodeInvalidRequest, pkgerrors.CodeOf(err))
	require.Len(t, emitter.events, 2)

	require.NoError(t, conn.First(&stored, "id = ?", post.ID).Error)
	require.Zero(t, stored.LikeCount)
}

func TestLikeMissingPost(t *testing.T) {
	svc, _, emitter := newPostsService(t)
	err := svc.Like(context.Background(), uuid.New(), uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	require.Empty(t, emitter.events)
}

func TestListByUserPaginates(t *testing.T) {
	svc, conn, _ := newPostsService(t)
	ctx := context.Background()
	creator := uuid.New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Create(&models.Post{
			CreatorID: creator,
			Content:   gofakeit.Sentence(4),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, conn.Create(&models.Post{CreatorID: uuid.New(), Content: "other"}).Error)

	first, err := svc.ListByUser(ctx, ListParams{UserID: creator, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.ListByUser(ctx, ListParams{UserID: creator, Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	_, err = svc.ListByUser(ctx, ListParams{UserID: creator, Cursor: "%%%"})
	require.Equal(t, pkgerrors.CodeInvalidRequest, pkgerrors.CodeOf(err))

	empty, err := svc.ListByUser(ctx, ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	require.NotNil(t, empty.Items)
	require.Empty(t, empty.Items)
}
