package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the typed JWT issued to clients. The user id
// is carried both as a typed claim and as the registered subject.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}
