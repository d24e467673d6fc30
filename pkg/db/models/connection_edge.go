package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// ConnectionEdge is an undirected first-degree connection stored once per
// pair with UserLow < UserHigh.
type ConnectionEdge struct {
	UserLow   uuid.UUID `gorm:"column:user_low;type:uuid;primaryKey"`
	UserHigh  uuid.UUID `gorm:"column:user_high;type:uuid;primaryKey"`
	RequestID uuid.UUID `gorm:"column:request_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// NewConnectionEdge orders the pair canonically.
func NewConnectionEdge(a, b, requestID uuid.UUID) ConnectionEdge {
	low, high := CanonicalPair(a, b)
	return ConnectionEdge{UserLow: low, UserHigh: high, RequestID: requestID}
}

// CanonicalPair returns the two ids ordered by their byte representation,
// which matches Postgres uuid ordering.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
