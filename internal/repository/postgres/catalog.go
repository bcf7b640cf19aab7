package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"
)

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) repository.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ReplaceCollection(ctx context.Context, collection domain.Collection, records []domain.CatalogRecord) (repository.ReplaceStats, error) {
	logger.EnterMethod("catalogRepository.ReplaceCollection", "collection", collection, "records", len(records))
	var stats repository.ReplaceStats

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("catalogRepository.ReplaceCollection", err, "reason", "begin")
		return stats, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(records))
	upsert := `INSERT INTO catalog_records (collection, record_id, position, payload, updated_on)
	           VALUES ($1, $2, $3, $4, $5)
	           ON CONFLICT (collection, record_id)
	           DO UPDATE SET position = EXCLUDED.position, payload = EXCLUDED.payload, updated_on = EXCLUDED.updated_on`
	logger.DatabaseCall("UPSERT", string(collection), "records", len(records))
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			logger.ExitMethodWithError("catalogRepository.ReplaceCollection", err, "recordID", rec.RecordID())
			return stats, fmt.Errorf("marshal %s/%s: %w", collection, rec.RecordID(), err)
		}
		if _, err := tx.ExecContext(ctx, upsert, string(collection), rec.RecordID(), i, payload, now); err != nil {
			logger.DatabaseResult("UPSERT", int64(i), err, "collection", collection)
			return stats, err
		}
		ids = append(ids, rec.RecordID())
	}
	stats.Upserted = len(records)
	logger.DatabaseResult("UPSERT", int64(stats.Upserted), nil, "collection", collection)

	// An empty id list deletes the whole collection: the source is empty.
	del := `DELETE FROM catalog_records WHERE collection = $1 AND NOT (record_id = ANY($2))`
	logger.DatabaseCall("DELETE", string(collection), "keep", len(ids))
	result, err := tx.ExecContext(ctx, del, string(collection), pq.Array(ids))
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err, "collection", collection)
		return stats, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return stats, err
	}
	stats.Deleted = int(deleted)
	logger.DatabaseResult("DELETE", deleted, nil, "collection", collection)

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("catalogRepository.ReplaceCollection", err, "reason", "commit")
		return repository.ReplaceStats{}, err
	}

	logger.ExitMethod("catalogRepository.ReplaceCollection", "upserted", stats.Upserted, "deleted", stats.Deleted)
	return stats, nil
}

func (r *catalogRepository) ListCollection(ctx context.Context, collection domain.Collection) ([]json.RawMessage, error) {
	query := `SELECT payload FROM catalog_records WHERE collection = $1 ORDER BY position, record_id`
	logger.DatabaseCall("SELECT", string(collection))
	rows, err := r.db.QueryContext(ctx, query, string(collection))
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "collection", collection)
		return nil, err
	}
	defer rows.Close()

	payloads := []json.RawMessage{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		payloads = append(payloads, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("SELECT", int64(len(payloads)), nil, "collection", collection)
	return payloads, nil
}

func (r *catalogRepository) UpsertConfig(ctx context.Context, id string, patch map[string]any) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	// || replaces top-level keys present in the patch and keeps the rest.
	query := `INSERT INTO catalog_config (id, payload, updated_on) VALUES ($1, $2, $3)
	          ON CONFLICT (id)
	          DO UPDATE SET payload = catalog_config.payload || EXCLUDED.payload, updated_on = EXCLUDED.updated_on`
	logger.DatabaseCall("UPSERT", "catalog_config", "id", id)
	result, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	var affected int64
	if err == nil {
		affected, _ = result.RowsAffected()
	}
	logger.DatabaseResult("UPSERT", affected, err, "id", id)
	return err
}

func (r *catalogRepository) GetConfig(ctx context.Context, id string) (*domain.ConfigDocument, error) {
	query := `SELECT payload, updated_on FROM catalog_config WHERE id = $1`
	var payload []byte
	var updatedOn time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(&payload, &updatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc domain.ConfigDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", id, err)
	}
	doc.ID = id
	doc.UpdatedOn = updatedOn
	return &doc, nil
}
