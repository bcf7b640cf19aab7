package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"
)

// CatalogBuilder assembles a PricingCatalog from what is in the store. Sync
// and the read-through path both use it, so a rebuilt catalog always matches
// the one a sync would have cached.
type CatalogBuilder struct {
	repo repository.CatalogRepository
}

func NewCatalogBuilder(repo repository.CatalogRepository) *CatalogBuilder {
	return &CatalogBuilder{repo: repo}
}

func (b *CatalogBuilder) Build(ctx context.Context) (*domain.PricingCatalog, error) {
	catalog := &domain.PricingCatalog{
		Products:   []domain.ProductEntry{},
		Generators: []domain.GeneratorEntry{},
		Branches:   []domain.BranchEntry{},
		States:     []domain.StateEntry{},
	}

	if err := loadCollection(ctx, b.repo, domain.CollectionProducts, &catalog.Products); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, b.repo, domain.CollectionGenerators, &catalog.Generators); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, b.repo, domain.CollectionBranches, &catalog.Branches); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, b.repo, domain.CollectionStates, &catalog.States); err != nil {
		return nil, err
	}

	doc, err := b.repo.GetConfig(ctx, domain.PricingConfigID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.WarnContext(ctx, "Pricing config document not found; using empty delivery config")
		catalog.Seasonal = domain.SeasonalConfig{Tiers: []domain.SeasonalTier{}}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", domain.CollectionConfig, err)
	default:
		catalog.Delivery = doc.Delivery
		catalog.Seasonal = doc.SeasonalMultipliers
		catalog.LastSynced = doc.UpdatedOn
	}
	if catalog.Seasonal.StandardMultiplier.IsZero() {
		catalog.Seasonal.StandardMultiplier = decimal.NewFromInt(1)
	}
	return catalog, nil
}

func loadCollection[T any](ctx context.Context, repo repository.CatalogRepository, collection domain.Collection, out *[]T) error {
	payloads, err := repo.ListCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("read %s: %w", collection, err)
	}
	for _, p := range payloads {
		var v T
		if err := json.Unmarshal(p, &v); err != nil {
			return fmt.Errorf("decode %s record: %w", collection, err)
		}
		*out = append(*out, v)
	}
	return nil
}

type catalogReader struct {
	cache   *cache.CatalogCache
	builder *CatalogBuilder
}

func NewCatalogReader(c *cache.CatalogCache, builder *CatalogBuilder) CatalogReader {
	return &catalogReader{cache: c, builder: builder}
}

// GetCatalog serves from cache, rebuilding from the store on a miss. The
// rebuild blocks the caller; repopulating the cache afterwards is best effort.
func (r *catalogReader) GetCatalog(ctx context.Context) (*domain.PricingCatalog, error) {
	catalog, ok, err := r.cache.Get(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Catalog cache read failed; reading store", "error", err)
	}
	if ok {
		logger.DebugContext(ctx, "Catalog served from cache", "products", len(catalog.Products))
		return catalog, nil
	}

	catalog, err = r.builder.Build(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Catalog store unreachable", "error", err)
		return nil, &domain.CatalogUnavailableError{Err: err}
	}

	if _, _, err := r.cache.Put(ctx, catalog); err != nil {
		logger.WarnContext(ctx, "Failed to repopulate catalog cache", "error", err)
	} else {
		logger.InfoContext(ctx, "Catalog cache repopulated from store", "products", len(catalog.Products))
	}
	return catalog, nil
}
