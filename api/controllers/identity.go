package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
)

func actingUser(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "acting user missing")
	}
	return id, nil
}
