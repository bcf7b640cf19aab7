package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
)

const (
	CatalogKey        = "pricing:catalog"
	CatalogUpdatedKey = "pricing:catalog:last_updated"
	LocationKeyPrefix = "location:"
)

// CatalogCache stores the merged PricingCatalog as one entry plus its
// last-updated stamp, and location lookups under LocationKeyPrefix.
type CatalogCache struct {
	store       Store
	codec       *codec
	catalogTTL  time.Duration
	locationTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCatalogCache(store Store, catalogTTL, locationTTL time.Duration) (*CatalogCache, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &CatalogCache{
		store:       store,
		codec:       c,
		catalogTTL:  catalogTTL,
		locationTTL: locationTTL,
	}, nil
}

// Store exposes the underlying KV store for admin key operations.
func (c *CatalogCache) Store() Store {
	return c.store
}

// Get returns the cached catalog. A missing or undecodable entry counts as a
// miss and returns ok=false; err is only the store's own failure.
func (c *CatalogCache) Get(ctx context.Context) (*domain.PricingCatalog, bool, error) {
	data, found, err := c.store.Get(ctx, CatalogKey)
	if err != nil {
		c.misses.Add(1)
		logger.CacheEvent("error", CatalogKey, "error", err)
		return nil, false, err
	}
	if !found {
		c.misses.Add(1)
		logger.CacheEvent("miss", CatalogKey)
		return nil, false, nil
	}

	var catalog domain.PricingCatalog
	if err := c.codec.unmarshal(data, &catalog); err != nil {
		c.misses.Add(1)
		logger.Warn("Discarding undecodable cached catalog", "key", CatalogKey, "error", err)
		return nil, false, nil
	}
	c.hits.Add(1)
	logger.CacheEvent("hit", CatalogKey, "bytes", len(data))
	return &catalog, true, nil
}

// Put replaces the cached catalog and returns its encoded size and fingerprint.
func (c *CatalogCache) Put(ctx context.Context, catalog *domain.PricingCatalog) (int, string, error) {
	data, err := c.codec.marshal(catalog)
	if err != nil {
		return 0, "", fmt.Errorf("encode catalog: %w", err)
	}
	if err := c.store.Set(ctx, CatalogKey, data, c.catalogTTL); err != nil {
		return 0, "", err
	}
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := c.store.Set(ctx, CatalogUpdatedKey, []byte(stamp), c.catalogTTL); err != nil {
		return 0, "", err
	}
	fp := fingerprint(data)
	logger.CacheEvent("write", CatalogKey, "bytes", len(data), "fingerprint", fp)
	return len(data), fp, nil
}

// Invalidate drops the catalog entry and its stamp. found reports whether the
// catalog entry existed.
func (c *CatalogCache) Invalidate(ctx context.Context) (bool, error) {
	found, err := c.store.Delete(ctx, CatalogKey)
	if err != nil {
		return false, err
	}
	if _, err := c.store.Delete(ctx, CatalogUpdatedKey); err != nil {
		return found, err
	}
	logger.CacheEvent("invalidate", CatalogKey, "found", found)
	return found, nil
}

// Stats reports counters and the current catalog entry's size and age.
func (c *CatalogCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats := domain.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}

	data, found, err := c.store.Get(ctx, CatalogKey)
	if err != nil {
		return stats, err
	}
	if found {
		stats.CatalogSizeBytes = len(data)
		stats.Fingerprint = fingerprint(data)
	}

	stamp, found, err := c.store.Get(ctx, CatalogUpdatedKey)
	if err != nil {
		return stats, err
	}
	if found {
		if t, err := time.Parse(time.RFC3339Nano, string(stamp)); err == nil {
			stats.LastUpdated = &t
		}
	}
	return stats, nil
}

// GetLocation returns a cached distance lookup for address.
func (c *CatalogCache) GetLocation(ctx context.Context, address string) (*domain.DistanceResult, bool, error) {
	key := LocationKey(address)
	data, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	var result domain.DistanceResult
	if err := c.codec.unmarshal(data, &result); err != nil {
		logger.Warn("Discarding undecodable location entry", "key", key, "error", err)
		return nil, false, nil
	}
	logger.CacheEvent("hit", key)
	return &result, true, nil
}

func (c *CatalogCache) PutLocation(ctx context.Context, address string, result *domain.DistanceResult) error {
	data, err := c.codec.marshal(result)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	key := LocationKey(address)
	logger.CacheEvent("write", key)
	return c.store.Set(ctx, key, data, c.locationTTL)
}

// LocationKey normalizes an address into its cache key: lower case with
// whitespace collapsed.
func LocationKey(address string) string {
	return LocationKeyPrefix + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

func fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
