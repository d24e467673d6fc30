package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
)

type createPostBody struct {
	Content string `json:"content" validate:"required"`
}

func TestDecodeJSONBody(t *testing.T) {
	var dest createPostBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hello"}`))
	require.NoError(t, DecodeJSONBody(req, &dest))
	require.Equal(t, "hello", dest.Content)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest createPostBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hi","extra":1}`))
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidRequest))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var dest createPostBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInvalidRequest, typed.Code())
	require.Equal(t, map[string]string{"content": "is required"}, typed.Details())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	v, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 20, 1, 100)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidRequest))

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 20, 1, 100)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidRequest))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("userId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "userId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("nope"), "userId")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidRequest))

	_, err = ParseUUIDParam(withParam(""), "userId")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidRequest))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abc  ", 0))
	require.Equal(t, "héé", SanitizeString("hééllo", 3))
}
