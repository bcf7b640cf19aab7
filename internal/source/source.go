// Package source defines the spreadsheet boundary the catalog sync pulls from.
package source

import "context"

// Row is one spreadsheet row keyed by lower_snake_case header.
type Row map[string]any

// ConfigBlock is the config tab as key/value settings plus the seasonal
// multiplier tiers in sheet order.
type ConfigBlock struct {
	Settings      map[string]any
	SeasonalTiers []Row
}

// Source returns raw rows for each catalog collection. Implementations do
// no validation; that happens at the ingest boundary.
type Source interface {
	FetchProducts(ctx context.Context) ([]Row, error)
	FetchGenerators(ctx context.Context) ([]Row, error)
	FetchBranches(ctx context.Context) ([]Row, error)
	FetchStates(ctx context.Context) ([]Row, error)
	FetchConfig(ctx context.Context) (*ConfigBlock, error)
}
