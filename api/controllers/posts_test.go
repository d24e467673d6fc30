package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/linkedge-backend/internal/posts"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

type testPostsService struct {
	createFn func(ctx context.Context, input posts.CreateInput) (*models.Post, error)
	getFn    func(ctx context.Context, postID uuid.UUID) (*models.Post, error)
	listFn   func(ctx context.Context, params posts.ListParams) (pagination.Page[models.Post], error)
	likeFn   func(ctx context.Context, postID, userID uuid.UUID) error
	unlikeFn func(ctx context.Context, postID, userID uuid.UUID) error
}

func (s *testPostsService) Create(ctx context.Context, input posts.CreateInput) (*models.Post, error) {
	return s.createFn(ctx, input)
}

func (s *testPostsService) Get(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	return s.getFn(ctx, postID)
}

func (s *testPostsService) ListByUser(ctx context.Context, params posts.ListParams) (pagination.Page[models.Post], error) {
	return s.listFn(ctx, params)
}

func (s *testPostsService) Like(ctx context.Context, postID, userID uuid.UUID) error {
	return s.likeFn(ctx, postID, userID)
}

func (s *testPostsService) Unlike(ctx context.Context, postID, userID uuid.UUID) error {
	return s.unlikeFn(ctx, postID, userID)
}

func TestCreatePost(t *testing.T) {
	actor := uuid.New()
	svc := &testPostsService{
		createFn: func(_ context.Context, input posts.CreateInput) (*models.Post, error) {
			require.Equal(t, actor, input.CreatorID)
			require.Equal(t, "shipping today", input.Content)
			return &models.Post{ID: uuid.New(), CreatorID: actor, Content: input.Content}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"content":"shipping today"}`))
	req = withUser(req, actor)
	resp := httptest.NewRecorder()
	CreatePost(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	var envelope struct {
		Data postView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Equal(t, actor, envelope.Data.CreatorID)
}

func TestCreatePostRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{}`))
	req = withUser(req, uuid.New())
	resp := httptest.NewRecorder()
	CreatePost(&testPostsService{}, testLogger())(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetPostNotFound(t *testing.T) {
	svc := &testPostsService{
		getFn: func(context.Context, uuid.UUID) (*models.Post, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		},
	}
	postID := uuid.NewString()
	req := addRouteParam(httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+postID, nil), "postId", postID)
	resp := httptest.NewRecorder()
	GetPost(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListUserPosts(t *testing.T) {
	author := uuid.New()
	svc := &testPostsService{
		listFn: func(_ context.Context, params posts.ListParams) (pagination.Page[models.Post], error) {
			require.Equal(t, posts.ListParams{UserID: author, Limit: 2, Cursor: "c1"}, params)
			return pagination.Page[models.Post]{
				Items:      []models.Post{{ID: uuid.New(), CreatorID: author, Content: "a"}, {ID: uuid.New(), CreatorID: author, Content: "b"}},
				NextCursor: "c2",
			}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+author.String()+"/posts?limit=2&cursor=c1", nil)
	req = addRouteParam(req, "userId", author.String())
	resp := httptest.NewRecorder()
	ListUserPosts(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data postPageView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Items, 2)
	require.Equal(t, "c2", envelope.Data.NextCursor)
}

func TestListUserPostsRejectsLimit(t *testing.T) {
	author := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+author+"/posts?limit=0", nil)
	req = addRouteParam(req, "userId", author)
	resp := httptest.NewRecorder()
	ListUserPosts(&testPostsService{}, testLogger())(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLikeAndUnlikePost(t *testing.T) {
	actor, postID := uuid.New(), uuid.New()
	var liked, unliked bool
	svc := &testPostsService{
		likeFn: func(_ context.Context, p, u uuid.UUID) error {
			require.Equal(t, postID, p)
			require.Equal(t, actor, u)
			liked = true
			return nil
		},
		unlikeFn: func(_ context.Context, p, u uuid.UUID) error {
			unliked = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/"+postID.String()+"/like", nil)
	req = addRouteParam(withUser(req, actor), "postId", postID.String())
	resp := httptest.NewRecorder()
	LikePost(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+postID.String()+"/like", nil)
	req = addRouteParam(withUser(req, actor), "postId", postID.String())
	resp = httptest.NewRecorder()
	UnlikePost(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	require.True(t, liked)
	require.True(t, unliked)
}

func TestLikePostTwiceIsBadRequest(t *testing.T) {
	svc := &testPostsService{
		likeFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeInvalidRequest, "post already liked")
		},
	}
	postID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/"+postID+"/like", nil)
	req = addRouteParam(withUser(req, uuid.New()), "postId", postID)
	resp := httptest.NewRecorder()
	LikePost(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
