package repository

import (
	"context"
	"encoding/json"

	"rental-quote-backend/internal/domain"
)

// ReplaceStats counts what a collection replace changed.
type ReplaceStats struct {
	Upserted int
	Deleted  int
}

// CatalogRepository is the durable catalog store. Implementations must make a
// replace atomic per collection: readers never see a half-written collection.
type CatalogRepository interface {
	// ReplaceCollection makes the stored collection mirror records exactly,
	// upserting every record and deleting ids absent from records.
	ReplaceCollection(ctx context.Context, collection domain.Collection, records []domain.CatalogRecord) (ReplaceStats, error)
	// ListCollection returns stored record payloads.
	ListCollection(ctx context.Context, collection domain.Collection) ([]json.RawMessage, error)
	// UpsertConfig merges patch into the config document, creating it if absent.
	// Top-level fields not in patch are preserved.
	UpsertConfig(ctx context.Context, id string, patch map[string]any) error
	// GetConfig returns domain.ErrNotFound when the document does not exist.
	GetConfig(ctx context.Context, id string) (*domain.ConfigDocument, error)
}

// SyncRunRepository keeps the history of finished sync runs.
type SyncRunRepository interface {
	RecordSyncRun(ctx context.Context, run *domain.SyncRun) error
	// LastSuccessfulRun returns nil, nil when no run has succeeded yet.
	LastSuccessfulRun(ctx context.Context) (*domain.SyncRun, error)
}
