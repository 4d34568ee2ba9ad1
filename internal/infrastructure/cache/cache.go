package cache

import (
	"context"
	"fmt"

	"github.com/feedcanon/backend/internal/domain"
)

// KeyPrefix namespaces every key the service writes to a shared Redis
const KeyPrefix = "feedcanon:"

// Closer is a cache that holds resources until closed
type Closer interface {
	domain.CacheRepository
	Close() error
}

// Open builds the cache selected by kind ("memory" or "redis")
func Open(ctx context.Context, kind, redisURL string) (Closer, error) {
	switch kind {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(ctx, redisURL, KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown cache type %q", kind)
	}
}
