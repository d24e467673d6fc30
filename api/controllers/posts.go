package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/api/responses"
	"github.com/angelmondragon/linkedge-backend/api/validators"
	"github.com/angelmondragon/linkedge-backend/internal/posts"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

type createPostRequest struct {
	Content string `json:"content" validate:"required"`
}

type postView struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creatorId"`
	Content   string    `json:"content"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
}

type postPageView struct {
	Items      []postView `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toPostView(p models.Post) postView {
	return postView{
		ID:        p.ID,
		CreatorID: p.CreatorID,
		Content:   p.Content,
		LikeCount: p.LikeCount,
		CreatedAt: p.CreatedAt,
	}
}

func CreatePost(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}
		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createPostRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		post, err := svc.Create(r.Context(), posts.CreateInput{CreatorID: userID, Content: req.Content})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPostView(*post))
	}
}

func GetPost(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}
		postID, err := validators.ParseUUIDParam(r, "postId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		post, err := svc.Get(r.Context(), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPostView(*post))
	}
}

// ListUserPosts pages through {userId}'s posts, newest first.
func ListUserPosts(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByUser(r.Context(), posts.ListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: validators.SanitizeString(r.URL.Query().Get("cursor"), 256),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := postPageView{Items: make([]postView, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, p := range page.Items {
			view.Items = append(view.Items, toPostView(p))
		}
		responses.WriteSuccess(w, view)
	}
}

func LikePost(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, userID, ok := postAndActor(w, r, svc == nil, logg)
		if !ok {
			return
		}
		if err := svc.Like(r.Context(), postID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true, "postId": postID})
	}
}

func UnlikePost(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, userID, ok := postAndActor(w, r, svc == nil, logg)
		if !ok {
			return
		}
		if err := svc.Unlike(r.Context(), postID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true, "postId": postID})
	}
}

func postAndActor(w http.ResponseWriter, r *http.Request, missingSvc bool, logg *logger.Logger) (uuid.UUID, uuid.UUID, bool) {
	if missingSvc {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := actingUser(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	postID, err := validators.ParseUUIDParam(r, "postId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return postID, userID, true
}
