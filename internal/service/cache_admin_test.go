package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/service"
)

func TestCacheAdminService(t *testing.T) {
	ctx := context.Background()
	cc := newCatalogCache(t)
	svc := service.NewCacheAdminService(cc)

	seed := func(t *testing.T) {
		t.Helper()
		_, _, err := cc.Put(ctx, &domain.PricingCatalog{Products: []domain.ProductEntry{{ID: "p1"}}})
		require.NoError(t, err)
		for _, addr := range []string{"100 Main St, Denver, CO", "5 Elm Ave, Boulder, CO", "9 Oak Rd, Austin, TX"} {
			require.NoError(t, cc.PutLocation(ctx, addr, &domain.DistanceResult{BranchName: "Denver", DistanceMiles: 12}))
		}
	}

	t.Run("ClearCacheKey", func(t *testing.T) {
		seed(t)
		result, err := svc.ClearCacheKey(ctx, cache.CatalogKey)
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, 1, result.Cleared)

		result, err = svc.ClearCacheKey(ctx, cache.CatalogKey)
		require.NoError(t, err)
		assert.False(t, result.Found)
		assert.Equal(t, 0, result.Cleared)
	})

	t.Run("ClearCacheKeyRequiresKey", func(t *testing.T) {
		_, err := svc.ClearCacheKey(ctx, "  ")
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("ClearCatalogRequiresConfirm", func(t *testing.T) {
		seed(t)
		_, err := svc.ClearCatalogCache(ctx, false)
		assert.True(t, domain.IsValidationError(err))

		_, ok, err := cc.Get(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ClearCatalog", func(t *testing.T) {
		seed(t)
		result, err := svc.ClearCatalogCache(ctx, true)
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, cache.CatalogKey, result.Key)

		_, ok, err := cc.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		// Clearing an already empty cache is not an error.
		result, err = svc.ClearCatalogCache(ctx, true)
		require.NoError(t, err)
		assert.False(t, result.Found)
	})

	t.Run("ClearLocationsBySubstring", func(t *testing.T) {
		seed(t)
		result, err := svc.ClearLocationCache(ctx, ", CO")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Cleared)
		assert.Equal(t, []string{
			"location:100 main st, denver, co",
			"location:5 elm ave, boulder, co",
		}, result.Keys)

		_, ok, err := cc.GetLocation(ctx, "9 Oak Rd, Austin, TX")
		require.NoError(t, err)
		assert.True(t, ok)

		// The catalog entry is untouched by location clears.
		_, ok, err = cc.Get(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ClearLocationsByGlob", func(t *testing.T) {
		seed(t)
		result, err := svc.ClearLocationCache(ctx, "location:9 *")
		require.NoError(t, err)
		assert.Equal(t, []string{"location:9 oak rd, austin, tx"}, result.Keys)
	})

	t.Run("ClearLocationsRejectsBadGlob", func(t *testing.T) {
		_, err := svc.ClearLocationCache(ctx, "denver[")
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "pattern", validation.Field)
	})

	t.Run("ClearAllLocations", func(t *testing.T) {
		seed(t)
		result, err := svc.ClearLocationCache(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Cleared)

		result, err = svc.ClearLocationCache(ctx, "")
		require.NoError(t, err)
		assert.False(t, result.Found)
		assert.Empty(t, result.Keys)
	})

	t.Run("Stats", func(t *testing.T) {
		seed(t)
		_, _, err := cc.Get(ctx)
		require.NoError(t, err)

		stats, err := svc.GetCacheStats(ctx)
		require.NoError(t, err)
		assert.Positive(t, stats.CatalogSizeBytes)
		assert.NotEmpty(t, stats.Fingerprint)
		assert.NotNil(t, stats.LastUpdated)
		assert.GreaterOrEqual(t, stats.Hits, int64(1))
	})
}
