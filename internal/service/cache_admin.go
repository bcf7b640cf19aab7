package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
)

type cacheAdminService struct {
	cache *cache.CatalogCache
}

func NewCacheAdminService(c *cache.CatalogCache) CacheAdminService {
	return &cacheAdminService{cache: c}
}

// ClearCacheKey removes one exact key. An absent key is reported, not an error.
func (s *cacheAdminService) ClearCacheKey(ctx context.Context, key string) (*domain.ClearResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &domain.ValidationError{Field: "key", Message: "cache key is required"}
	}
	found, err := s.cache.Store().Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	result := &domain.ClearResult{Key: key, Found: found}
	if found {
		result.Cleared = 1
	}
	logger.InfoContext(ctx, "Cache key cleared", "key", key, "found", found)
	return result, nil
}

// ClearCatalogCache drops the cached catalog so the next read rebuilds it from
// the store. It refuses to run without explicit confirmation.
func (s *cacheAdminService) ClearCatalogCache(ctx context.Context, confirm bool) (*domain.ClearResult, error) {
	if !confirm {
		return nil, &domain.ValidationError{Field: "confirm", Message: "catalog cache clear must be confirmed"}
	}
	found, err := s.cache.Invalidate(ctx)
	if err != nil {
		return nil, err
	}
	result := &domain.ClearResult{Key: cache.CatalogKey, Found: found}
	if found {
		result.Cleared = 1
	}
	logger.InfoContext(ctx, "Catalog cache cleared", "found", found)
	return result, nil
}

// ClearLocationCache deletes location entries matching pattern. A plain
// pattern matches as a substring of the normalized address; an empty one
// clears every location entry.
func (s *cacheAdminService) ClearLocationCache(ctx context.Context, pattern string) (*domain.ClearResult, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	glob := pattern
	if !strings.HasPrefix(pattern, cache.LocationKeyPrefix) {
		glob = cache.LocationKeyPrefix + cache.GlobPattern(pattern)
	}

	keys, err := s.cache.Store().Keys(ctx, glob)
	if errors.Is(err, path.ErrBadPattern) {
		return nil, &domain.ValidationError{Field: "pattern", Message: "pattern is not a valid glob"}
	}
	if err != nil {
		return nil, err
	}
	result := &domain.ClearResult{Keys: []string{}}
	for _, key := range keys {
		found, err := s.cache.Store().Delete(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			result.Keys = append(result.Keys, key)
			result.Cleared++
		}
	}
	result.Found = result.Cleared > 0
	logger.InfoContext(ctx, "Location cache cleared", "pattern", glob, "cleared", result.Cleared)
	return result, nil
}

func (s *cacheAdminService) GetCacheStats(ctx context.Context) (*domain.CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
