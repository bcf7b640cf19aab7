package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"rental-quote-backend/internal/jobs"
	"rental-quote-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	jobs    *jobs.JobRunner
	started atomic.Bool
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Catalog sync
	_, err := s.cron.AddFunc(cfg.SyncCatalog, s.jobs.SyncCatalog)
	if err != nil {
		logger.Error("Failed to register SyncCatalog job", "error", err)
	} else {
		logger.Debug("Cron job registered", "job", "SyncCatalog", "schedule", cfg.SyncCatalog)
	}

	// Cache stats report
	_, err = s.cron.AddFunc(cfg.CacheStats, s.jobs.LogCacheStats)
	if err != nil {
		logger.Error("Failed to register LogCacheStats job", "error", err)
	} else {
		logger.Debug("Cron job registered", "job", "LogCacheStats", "schedule", cfg.CacheStats)
	}

	logger.Info("All cron jobs registered", "entries", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	s.started.Store(true)
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	s.started.Store(false)
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning reports whether the scheduler is started with at least one job
// registered.
func (s *Scheduler) IsRunning() bool {
	return s.started.Load() && len(s.cron.Entries()) > 0
}
