package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/repository/postgres"
)

func TestSyncRunRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewSyncRunRepository(db)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)

	t.Run("Record", func(t *testing.T) {
		run := &domain.SyncRun{RunID: "run-1", State: domain.SyncStatePartiallyFailed, StartedAt: started, FinishedAt: finished, Errors: []string{"products: boom"}}

		mock.ExpectExec("INSERT INTO sync_runs").
			WithArgs("run-1", "PARTIALLY_FAILED", started, finished, []byte(`["products: boom"]`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.RecordSyncRun(ctx, run))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LastSuccessful", func(t *testing.T) {
		mock.ExpectQuery("SELECT run_id, state, started_at, finished_at, errors FROM sync_runs").
			WithArgs("SUCCEEDED", "PARTIALLY_FAILED").
			WillReturnRows(sqlmock.NewRows([]string{"run_id", "state", "started_at", "finished_at", "errors"}).
				AddRow("run-1", "SUCCEEDED", started, finished, []byte(`[]`)))

		run, err := repo.LastSuccessfulRun(ctx)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, domain.SyncStateSucceeded, run.State)
		assert.Equal(t, finished, run.FinishedAt)
	})

	t.Run("NoneYet", func(t *testing.T) {
		mock.ExpectQuery("SELECT run_id, state, started_at, finished_at, errors FROM sync_runs").
			WillReturnRows(sqlmock.NewRows([]string{"run_id", "state", "started_at", "finished_at", "errors"}))

		run, err := repo.LastSuccessfulRun(ctx)
		assert.NoError(t, err)
		assert.Nil(t, run)
	})
}
