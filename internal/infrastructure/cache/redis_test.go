package cache

import (
	"context"
	"testing"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisCache_InvalidURL(t *testing.T) {
	c, err := NewRedisCache(context.Background(), "not-a-url", "feedcanon:")
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, "redis://127.0.0.1:1/0", "feedcanon:")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	assert.Nil(t, c)
}
