package shipping

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Cache is a byte-value store with expiry, such as redis.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedProvider memoizes another provider's readings per destination.
// Cache failures are logged and fall through to the wrapped provider.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

func cacheKey(destination string) string {
	return "shipping:temp:" + destination
}

// Lookup implements Provider.
func (p *CachedProvider) Lookup(ctx context.Context, destination string) (float64, error) {
	key := cacheKey(destination)

	b, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("temperature cache read failed", "destination", destination, "error", err)
	} else if ok {
		if temp, err := strconv.ParseFloat(string(b), 64); err == nil {
			return temp, nil
		}
	}

	temp, err := p.next.Lookup(ctx, destination)
	if err != nil {
		return 0, err
	}

	if err := p.cache.Set(ctx, key, []byte(strconv.FormatFloat(temp, 'f', -1, 64)), p.ttl); err != nil {
		slog.Warn("temperature cache write failed", "destination", destination, "error", err)
	}
	return temp, nil
}
