package jobs

import (
	"context"
	"errors"

	"rental-quote-backend/internal/config"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Sync  service.SyncService
	Cache service.CacheAdminService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithService("jobs").With("job", jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	log.Info("Starting job")
	jobFunc()
	log.Info("Job completed")
}

// SyncCatalog pulls the spreadsheet into the store and refreshes the cache.
// A tick that lands while a manual sync is running is skipped.
func (jr *JobRunner) SyncCatalog() {
	jr.runWithRecovery("SyncCatalog", func() {
		ctx := context.Background()

		result, err := jr.services.Sync.TriggerSync(ctx)
		if errors.Is(err, domain.ErrSyncAlreadyRunning) {
			logger.Info("Skipping scheduled sync; a sync is already running")
			return
		}
		if err != nil {
			logger.Error("Scheduled sync failed", "error", err)
			return
		}

		logger.Info("Scheduled sync finished",
			"run_id", result.RunID,
			"state", result.State,
			"cache_written", result.CacheWritten)
	})
}

// LogCacheStats reports cache effectiveness for dashboards built on logs
func (jr *JobRunner) LogCacheStats() {
	jr.runWithRecovery("LogCacheStats", func() {
		ctx := context.Background()

		stats, err := jr.services.Cache.GetCacheStats(ctx)
		if err != nil {
			logger.Error("Failed to read cache stats", "error", err)
			return
		}

		logger.Info("Cache stats",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"hit_ratio", stats.HitRatio,
			"catalog_size_bytes", stats.CatalogSizeBytes,
			"fingerprint", stats.Fingerprint)
	})
}
