package graphclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/redis"
)

// CachedClient is a read-through Redis cache in front of another Lookup.
// Cache failures fall through to the wrapped lookup.
type CachedClient struct {
	next  Lookup
	cache redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedClient wraps next. A non-positive ttl returns next unchanged.
func NewCachedClient(next Lookup, cache redis.CacheStore, ttl time.Duration, logg *logger.Logger) Lookup {
	if ttl <= 0 || cache == nil {
		return next
	}
	return &CachedClient{next: next, cache: cache, ttl: ttl, logg: logg}
}

func (c *CachedClient) FirstDegreeConnections(ctx context.Context, userID uuid.UUID) ([]Person, error) {
	key := c.cache.GraphCacheKey(userID.String())

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var people []Person
		if jsonErr := json.Unmarshal([]byte(raw), &people); jsonErr == nil {
			return people, nil
		}
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "graph cache read failed", err)
	}

	people, err := c.next.FirstDegreeConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(people)
	if err == nil {
		if setErr := c.cache.Set(ctx, key, string(encoded), c.ttl); setErr != nil {
			c.warn(ctx, "graph cache write failed", setErr)
		}
	}
	return people, nil
}

func (c *CachedClient) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(ctx, msg+": "+err.Error())
}
