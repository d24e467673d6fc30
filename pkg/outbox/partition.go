package outbox

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
)

// PairKey is the partition key for events about an unordered pair of users.
// Both directions of a request between A and B map to the same key so they are
// delivered in order.
func PairKey(a, b uuid.UUID) string {
	low, high := models.CanonicalPair(a, b)
	return low.String() + ":" + high.String()
}

// EntityKey is the partition key for events about a single entity.
func EntityKey(id uuid.UUID) string {
	return id.String()
}
