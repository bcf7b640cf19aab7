package service

import (
	"context"

	"rental-quote-backend/internal/domain"
)

type SyncService interface {
	// TriggerSync runs one sync to completion. A trigger while a run is in
	// flight returns a Duplicate result and ErrSyncAlreadyRunning at once.
	TriggerSync(ctx context.Context) (*domain.SyncResult, error)
	GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error)
}

type CatalogReader interface {
	GetCatalog(ctx context.Context) (*domain.PricingCatalog, error)
}

type QuoteService interface {
	ComputeQuote(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error)
}

type DistanceResolver interface {
	ResolveDistance(ctx context.Context, address string) (*domain.DistanceResult, error)
}

type CacheAdminService interface {
	ClearCacheKey(ctx context.Context, key string) (*domain.ClearResult, error)
	ClearCatalogCache(ctx context.Context, confirm bool) (*domain.ClearResult, error)
	ClearLocationCache(ctx context.Context, pattern string) (*domain.ClearResult, error)
	GetCacheStats(ctx context.Context) (*domain.CacheStats, error)
}

type AlertService interface {
	SendSyncAlert(ctx context.Context, result *domain.SyncResult, errs []string) error
}
