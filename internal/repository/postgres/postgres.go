package postgres

import (
	"context"
	"database/sql"

	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"

	_ "github.com/lib/pq"
)

// Schema creates the catalog tables. Safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS catalog_records (
	collection TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	payload    JSONB NOT NULL,
	updated_on TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, record_id)
);

CREATE TABLE IF NOT EXISTS catalog_config (
	id         TEXT PRIMARY KEY,
	payload    JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_on TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	run_id      TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	errors      JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS sync_runs_finished_at_idx ON sync_runs (finished_at DESC);
`

type Store struct {
	db *sql.DB
	repository.CatalogRepository
	repository.SyncRunRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                db,
		CatalogRepository: NewCatalogRepository(db),
		SyncRunRepository: NewSyncRunRepository(db),
	}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	logger.DatabaseCall("DDL", "schema")
	_, err := s.db.ExecContext(ctx, Schema)
	logger.DatabaseResult("DDL", 0, err)
	return err
}
