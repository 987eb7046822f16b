package cache

import (
	"context"
	"time"
)

// ListCache is the cache-aside layer in front of hot list endpoints.
// Get unmarshals the cached payload into dest and reports a hit;
// Invalidate drops keys after a write. All methods are best-effort,
// callers treat errors as misses.
type ListCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopListCache struct{}

func (NoopListCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopListCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopListCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
