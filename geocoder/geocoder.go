package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/infra"
)

// ErrNotFound means the provider knows no candidate for the address.
// Provider failures are returned as ordinary errors and are never cached.
var ErrNotFound = errors.New("address could not be geocoded")

// Cache is the key-value surface the geocoder memoizes into. Satisfied by
// infra.RedisClient; Get must return infra.ErrCacheMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Provider is the upstream geocoding call. Satisfied by
// infra.GeocodingService.
type Provider interface {
	Search(ctx context.Context, address string) ([]entity.Coordinates, error)
}

type Geocoder struct {
	cache    Cache
	provider Provider
	ttl      time.Duration
	logger   *infra.LoggerClient
}

// cachedEntry is what gets stored per address. Found=false is the
// negative marker: a known-unresolvable address is not re-queried before
// the entry expires.
type cachedEntry struct {
	Found       bool                `json:"found"`
	Coordinates *entity.Coordinates `json:"coordinates,omitempty"`
}

func New(cache Cache, provider Provider, ttl time.Duration, logger *infra.LoggerClient) *Geocoder {
	return &Geocoder{
		cache:    cache,
		provider: provider,
		ttl:      ttl,
		logger:   logger,
	}
}

func cacheKey(address string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(address))
}

// Resolve maps a free-text address to coordinates, consulting the cache
// first. Both positive and negative answers are memoized with the
// configured TTL. Writes are idempotent last-write-wins on the same key,
// so no cross-caller locking is needed.
func (g *Geocoder) Resolve(ctx context.Context, address string) (*entity.Coordinates, error) {
	key := cacheKey(address)

	var entry cachedEntry
	err := g.cache.Get(ctx, key, &entry)
	if err == nil {
		if !entry.Found {
			return nil, ErrNotFound
		}
		return entry.Coordinates, nil
	}
	if !errors.Is(err, infra.ErrCacheMiss) {
		// A broken cache degrades to an upstream call, it does not fail
		// the lookup.
		g.logger.WarningWithContextf(ctx, "[Geocoder] Cache read failed for %q: %v", address, err)
	}

	candidates, err := g.provider.Search(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q failed: %w", address, err)
	}

	if len(candidates) == 0 {
		if err := g.cache.Set(ctx, key, cachedEntry{Found: false}, g.ttl); err != nil {
			g.logger.WarningWithContextf(ctx, "[Geocoder] Cache write failed for %q: %v", address, err)
		}
		return nil, ErrNotFound
	}

	coords := candidates[0]
	if err := g.cache.Set(ctx, key, cachedEntry{Found: true, Coordinates: &coords}, g.ttl); err != nil {
		g.logger.WarningWithContextf(ctx, "[Geocoder] Cache write failed for %q: %v", address, err)
	}

	return &coords, nil
}
