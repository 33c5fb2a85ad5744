package geocode

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/cache"
)

// CachedClient fronts a Client with the persistent geocode cache namespace.
// Both matches and definitive misses are cached, so a place name is sent to
// the provider at most once across runs. Provider errors are not cached.
type CachedClient struct {
	inner Client
	store *cache.Store
}

// NewCachedClient wraps inner with cache lookups against store.
func NewCachedClient(inner Client, store *cache.Store) *CachedClient {
	return &CachedClient{inner: inner, store: store}
}

type cachedResult struct {
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Geocode implements Client.
func (c *CachedClient) Geocode(ctx context.Context, q Query) (*Result, error) {
	key := q.Key()

	entry, found, err := c.store.Get(ctx, cache.NamespaceGeocode, key)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		if entry.Negative {
			return &Result{Matched: false}, nil
		}
		var cr cachedResult
		if err := json.Unmarshal(entry.Value, &cr); err == nil {
			return &Result{
				Latitude:    cr.Latitude,
				Longitude:   cr.Longitude,
				DisplayName: cr.DisplayName,
				Matched:     true,
			}, nil
		}
		zap.L().Warn("geocode: discarding corrupt cache entry", zap.String("key", key))
	}

	result, err := c.inner.Geocode(ctx, q)
	if err != nil {
		return nil, err
	}

	// Finish the cache write even mid-cancellation so the paid-for lookup
	// is not lost.
	wctx := context.WithoutCancel(ctx)
	if !result.Matched {
		if err := c.store.PutNegative(wctx, cache.NamespaceGeocode, key); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	}

	value, err := json.Marshal(cachedResult{
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		DisplayName: result.DisplayName,
	})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: encode cache entry")
	}
	if err := c.store.Put(wctx, cache.NamespaceGeocode, key, value); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}
