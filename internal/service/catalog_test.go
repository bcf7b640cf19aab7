package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/service"
	"rental-quote-backend/internal/source"
)

func newCatalogCache(t *testing.T) *cache.CatalogCache {
	t.Helper()
	store := cache.NewMemoryStore()
	t.Cleanup(store.Close)
	cc, err := cache.NewCatalogCache(store, 0, time.Hour)
	require.NoError(t, err)
	return cc
}

func TestCatalogReader_ReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	f.stubSource(productRows(), generatorRows())
	f.runs.On("RecordSyncRun", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.TriggerSync(ctx)
	require.NoError(t, err)

	reader := service.NewCatalogReader(f.cache, f.builder)
	hit, err := reader.GetCatalog(ctx)
	require.NoError(t, err)

	found, err := f.cache.Invalidate(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	miss, err := reader.GetCatalog(ctx)
	require.NoError(t, err)

	assert.False(t, hit.LastSynced.IsZero())
	hitJSON, err := json.Marshal(hit)
	require.NoError(t, err)
	missJSON, err := json.Marshal(miss)
	require.NoError(t, err)
	assert.JSONEq(t, string(hitJSON), string(missJSON))

	// The miss repopulated the cache.
	_, ok, err := f.cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := f.cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCatalogReader_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepo)
	repo.On("ListCollection", ctx, domain.CollectionProducts).Return(nil, errors.New("connection refused"))

	reader := service.NewCatalogReader(newCatalogCache(t), service.NewCatalogBuilder(repo))
	catalog, err := reader.GetCatalog(ctx)
	assert.Nil(t, catalog)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	repo.AssertExpectations(t)
}

func TestCatalogBuilder_MissingConfig(t *testing.T) {
	ctx := context.Background()
	repo := newMemCatalogRepo()
	_, err := repo.ReplaceCollection(ctx, domain.CollectionStates, []domain.CatalogRecord{domain.StateEntry{Name: "Texas", Code: "TX"}})
	require.NoError(t, err)

	catalog, err := service.NewCatalogBuilder(repo).Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, catalog.Products)
	assert.NotNil(t, catalog.Products)
	require.Len(t, catalog.States, 1)
	assert.Equal(t, "TX", catalog.States[0].Code)
	assert.Equal(t, "1", catalog.Seasonal.StandardMultiplier.String())
	assert.True(t, catalog.Delivery.BaseFee.IsZero())
}

func TestCatalogBuilder_ConfigReadError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepo)
	for _, c := range []domain.Collection{domain.CollectionProducts, domain.CollectionGenerators, domain.CollectionBranches, domain.CollectionStates} {
		repo.On("ListCollection", ctx, c).Return([]json.RawMessage{}, nil).Once()
	}
	repo.On("GetConfig", ctx, domain.PricingConfigID).Return(nil, errors.New("timeout")).Once()

	catalog, err := service.NewCatalogBuilder(repo).Build(ctx)
	assert.Nil(t, catalog)
	assert.ErrorContains(t, err, "timeout")
	repo.AssertExpectations(t)
}

func TestCatalogBuilder_PreservesSheetOrder(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	f.stubSource([]source.Row{
		{"id": "zeta", "rate_daily": "10"},
		{"id": "alpha", "rate_daily": "20"},
	}, nil)
	f.runs.On("RecordSyncRun", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.TriggerSync(ctx)
	require.NoError(t, err)

	catalog, err := f.builder.Build(ctx)
	require.NoError(t, err)
	require.Len(t, catalog.Products, 2)
	assert.Equal(t, "zeta", catalog.Products[0].ID)
	assert.Equal(t, "alpha", catalog.Products[1].ID)
}
