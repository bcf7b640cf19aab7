package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"
)

type syncRunRepository struct {
	db *sql.DB
}

func NewSyncRunRepository(db *sql.DB) repository.SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) RecordSyncRun(ctx context.Context, run *domain.SyncRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_runs (run_id, state, started_at, finished_at, errors) VALUES ($1, $2, $3, $4, $5)`
	logger.DatabaseCall("INSERT", "sync_runs", "runID", run.RunID, "state", run.State)
	_, err = r.db.ExecContext(ctx, query, run.RunID, string(run.State), run.StartedAt, run.FinishedAt, errorsJSON)
	logger.DatabaseResult("INSERT", 1, err, "runID", run.RunID)
	return err
}

func (r *syncRunRepository) LastSuccessfulRun(ctx context.Context) (*domain.SyncRun, error) {
	query := `SELECT run_id, state, started_at, finished_at, errors FROM sync_runs
	          WHERE state IN ($1, $2) ORDER BY finished_at DESC LIMIT 1`
	var run domain.SyncRun
	var state string
	var errorsJSON []byte
	err := r.db.QueryRowContext(ctx, query, string(domain.SyncStateSucceeded), string(domain.SyncStatePartiallyFailed)).
		Scan(&run.RunID, &state, &run.StartedAt, &run.FinishedAt, &errorsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.State = domain.SyncState(state)
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
