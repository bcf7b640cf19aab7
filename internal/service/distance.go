package service

import (
	"context"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
)

type cachedDistanceResolver struct {
	next  DistanceResolver
	cache *cache.CatalogCache
}

// NewCachedDistanceResolver memoizes next's answers under the location: key
// space so admins can clear them by pattern.
func NewCachedDistanceResolver(next DistanceResolver, c *cache.CatalogCache) DistanceResolver {
	return &cachedDistanceResolver{next: next, cache: c}
}

func (r *cachedDistanceResolver) ResolveDistance(ctx context.Context, address string) (*domain.DistanceResult, error) {
	if result, ok, err := r.cache.GetLocation(ctx, address); err != nil {
		logger.WarnContext(ctx, "Location cache read failed", "address", address, "error", err)
	} else if ok {
		return result, nil
	}

	result, err := r.next.ResolveDistance(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := r.cache.PutLocation(ctx, address, result); err != nil {
		logger.WarnContext(ctx, "Failed to cache location", "address", address, "error", err)
	}
	return result, nil
}
