package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations. Values are
// opaque encoded payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MerchantDirectory provides per-merchant feed configuration
type MerchantDirectory interface {
	Lookup(name string) (MerchantConfig, bool)
	PIDColumns() map[string]string
	Names() []string
}

// OfferRepository defines persistence for normalized offers
type OfferRepository interface {
	StartRun(ctx context.Context, merchant, source string) (*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	SaveOffers(ctx context.Context, runID string, offers []*NormalizedOffer) error
	GetOffer(ctx context.Context, offerID string) (*NormalizedOffer, error)
	ListOffers(ctx context.Context, merchant string, limit int) ([]*NormalizedOffer, error)
}
