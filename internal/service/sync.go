package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"rental-quote-backend/internal/cache"
	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/ingest"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"
	"rental-quote-backend/internal/source"
)

const maxRecentErrors = 20

type syncService struct {
	source  source.Source
	repo    repository.CatalogRepository
	runs    repository.SyncRunRepository
	builder *CatalogBuilder
	cache   *cache.CatalogCache
	alerts  AlertService

	// mu guards everything below. Only the goroutine that moved state to
	// RUNNING may move it out again.
	mu              sync.Mutex
	state           domain.SyncState
	lastSuccess     *time.Time
	lastRunID       string
	lastFingerprint string
	recentErrors    []domain.SyncError
}

// NewSyncService wires the orchestrator. runs and alerts may be nil.
func NewSyncService(src source.Source, repo repository.CatalogRepository, runs repository.SyncRunRepository, builder *CatalogBuilder, c *cache.CatalogCache, alerts AlertService) SyncService {
	return &syncService{
		source:  src,
		repo:    repo,
		runs:    runs,
		builder: builder,
		cache:   c,
		alerts:  alerts,
		state:   domain.SyncStateIdle,
	}
}

// begin moves the state to RUNNING unless a run is already in flight.
func (s *syncService) begin(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SyncStateRunning {
		return false
	}
	s.state = domain.SyncStateRunning
	s.lastRunID = runID
	return true
}

func (s *syncService) finish(result *domain.SyncResult, errs []domain.SyncError, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = result.State
	if result.State == domain.SyncStateSucceeded || result.State == domain.SyncStatePartiallyFailed {
		t := result.FinishedAt
		s.lastSuccess = &t
	}
	if fingerprint != "" {
		s.lastFingerprint = fingerprint
	}
	s.recentErrors = append(s.recentErrors, errs...)
	if n := len(s.recentErrors); n > maxRecentErrors {
		s.recentErrors = append([]domain.SyncError(nil), s.recentErrors[n-maxRecentErrors:]...)
	}
}

func (s *syncService) TriggerSync(ctx context.Context) (*domain.SyncResult, error) {
	runID := uuid.NewString()
	if !s.begin(runID) {
		logger.Warn("Duplicate sync trigger rejected; a sync is already running")
		return &domain.SyncResult{State: domain.SyncStateRunning, Duplicate: true}, domain.ErrSyncAlreadyRunning
	}
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.state = domain.SyncStateFailed
			s.mu.Unlock()
			panic(r)
		}
	}()

	// A sync runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := logger.WithRun(runID)

	result := &domain.SyncResult{
		RunID:         runID,
		PerCollection: make(map[domain.Collection]domain.CollectionResult, len(domain.AllCollections)),
		StartedAt:     time.Now().UTC(),
	}
	log.Info("Catalog sync started")

	var merr *multierror.Error
	var syncErrs []domain.SyncError
	record := func(collection domain.Collection, err error) {
		merr = multierror.Append(merr, err)
		syncErrs = append(syncErrs, domain.SyncError{
			RunID:      runID,
			Collection: collection,
			Message:    err.Error(),
			OccurredAt: time.Now().UTC(),
		})
	}

	succeeded := 0
	for _, collection := range domain.AllCollections {
		cr, issues, err := s.syncCollection(ctx, collection)
		for _, issue := range issues {
			log.Warn("Row quarantined", "collection", collection, "row", issue.Row, "id", issue.ID, "reason", issue.Reason)
			record(collection, fmt.Errorf("quarantined %s", issue))
		}
		if err != nil {
			cr.Success = false
			cr.Error = err.Error()
			log.Error("Collection sync failed", "collection", collection, "error", err)
			record(collection, err)
		} else {
			succeeded++
			log.Info("Collection synced", "collection", collection, "upserted", cr.Upserted, "deleted", cr.Deleted, "quarantined", cr.Quarantined)
		}
		result.PerCollection[collection] = cr
	}

	switch succeeded {
	case len(domain.AllCollections):
		result.State = domain.SyncStateSucceeded
	case 0:
		result.State = domain.SyncStateFailed
	default:
		result.State = domain.SyncStatePartiallyFailed
	}
	result.OverallSuccess = result.State == domain.SyncStateSucceeded

	var fingerprint string
	if result.State != domain.SyncStateFailed {
		fp, err := s.refreshCache(ctx, result)
		if err != nil {
			log.Error("Catalog cache not updated", "error", err)
			record("", err)
		}
		fingerprint = fp
	} else {
		log.Warn("All collections failed; keeping the previous cached catalog")
	}

	result.FinishedAt = time.Now().UTC()
	s.finish(result, syncErrs, fingerprint)

	errStrings := make([]string, 0, len(syncErrs))
	for _, e := range syncErrs {
		errStrings = append(errStrings, e.Message)
	}
	s.recordRun(ctx, result, errStrings)
	if result.State != domain.SyncStateSucceeded && s.alerts != nil {
		if err := s.alerts.SendSyncAlert(ctx, result, errStrings); err != nil {
			log.Error("Failed to send sync alert", "error", err)
		}
	}

	log.Info("Catalog sync finished",
		"state", result.State,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"cache_written", result.CacheWritten,
		"errors", merr.ErrorOrNil())
	return result, nil
}

// refreshCache rebuilds the catalog from the store and caches it.
func (s *syncService) refreshCache(ctx context.Context, result *domain.SyncResult) (string, error) {
	catalog, err := s.builder.Build(ctx)
	if err != nil {
		return "", fmt.Errorf("rebuild catalog from store: %w", err)
	}

	size, fingerprint, err := s.cache.Put(ctx, catalog)
	if err != nil {
		return "", fmt.Errorf("write catalog cache: %w", err)
	}
	result.CacheWritten = true

	s.mu.Lock()
	changed := fingerprint != s.lastFingerprint
	s.mu.Unlock()
	logger.Info("Catalog cached", "run_id", result.RunID, "bytes", size, "fingerprint", fingerprint, "changed", changed)
	return fingerprint, nil
}

// syncCollection pulls, parses and stores one collection. Quarantined rows
// are returned as issues and do not fail the collection, unless every row
// was rejected: then the store is left untouched rather than emptied.
func (s *syncService) syncCollection(ctx context.Context, collection domain.Collection) (domain.CollectionResult, []ingest.RowIssue, error) {
	var cr domain.CollectionResult

	if collection == domain.CollectionConfig {
		block, err := s.source.FetchConfig(ctx)
		if err != nil {
			return cr, nil, &domain.SourceFetchError{Collection: collection, Err: err}
		}
		delivery, seasonal, issues, err := ingest.ParseConfig(block)
		cr.Quarantined = len(issues)
		if err != nil {
			return cr, issues, fmt.Errorf("parse %s: %w", collection, err)
		}
		patch := map[string]any{
			"delivery":             delivery,
			"seasonal_multipliers": seasonal,
		}
		if err := s.repo.UpsertConfig(ctx, domain.PricingConfigID, patch); err != nil {
			return cr, issues, &domain.StoreWriteError{Collection: collection, Err: err}
		}
		cr.Success = true
		cr.Upserted = 1
		return cr, issues, nil
	}

	rows, err := s.fetch(ctx, collection)
	if err != nil {
		return cr, nil, &domain.SourceFetchError{Collection: collection, Err: err}
	}
	records, issues := parseRows(collection, rows)
	cr.Quarantined = len(issues)
	if len(rows) > 0 && len(records) == 0 {
		return cr, issues, fmt.Errorf("all %d %s rows were rejected; store left unchanged", len(rows), collection)
	}

	stats, err := s.repo.ReplaceCollection(ctx, collection, records)
	if err != nil {
		return cr, issues, &domain.StoreWriteError{Collection: collection, Err: err}
	}
	cr.Success = true
	cr.Upserted = stats.Upserted
	cr.Deleted = stats.Deleted
	return cr, issues, nil
}

func (s *syncService) fetch(ctx context.Context, collection domain.Collection) ([]source.Row, error) {
	switch collection {
	case domain.CollectionProducts:
		return s.source.FetchProducts(ctx)
	case domain.CollectionGenerators:
		return s.source.FetchGenerators(ctx)
	case domain.CollectionBranches:
		return s.source.FetchBranches(ctx)
	case domain.CollectionStates:
		return s.source.FetchStates(ctx)
	}
	return nil, fmt.Errorf("unknown collection %q", collection)
}

func parseRows(collection domain.Collection, rows []source.Row) ([]domain.CatalogRecord, []ingest.RowIssue) {
	switch collection {
	case domain.CollectionProducts:
		parsed, issues := ingest.ParseProducts(rows)
		return toRecords(parsed), issues
	case domain.CollectionGenerators:
		parsed, issues := ingest.ParseGenerators(rows)
		return toRecords(parsed), issues
	case domain.CollectionBranches:
		parsed, issues := ingest.ParseBranches(rows)
		return toRecords(parsed), issues
	default:
		parsed, issues := ingest.ParseStates(rows)
		return toRecords(parsed), issues
	}
}

func toRecords[T domain.CatalogRecord](entries []T) []domain.CatalogRecord {
	records := make([]domain.CatalogRecord, len(entries))
	for i, e := range entries {
		records[i] = e
	}
	return records
}

func (s *syncService) recordRun(ctx context.Context, result *domain.SyncResult, errs []string) {
	if s.runs == nil {
		return
	}
	run := &domain.SyncRun{
		RunID:      result.RunID,
		State:      result.State,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Errors:     errs,
	}
	if err := s.runs.RecordSyncRun(ctx, run); err != nil {
		logger.Error("Failed to record sync run", "run_id", result.RunID, "error", err)
	}
}

func (s *syncService) GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	s.mu.Lock()
	status := &domain.SyncStatus{
		State:        s.state,
		IsRunning:    s.state == domain.SyncStateRunning,
		LastRunID:    s.lastRunID,
		RecentErrors: append([]domain.SyncError{}, s.recentErrors...),
	}
	if s.lastSuccess != nil {
		t := *s.lastSuccess
		status.LastSuccess = &t
	}
	s.mu.Unlock()

	// After a restart the in-memory stamp is empty; fall back to history.
	if status.LastSuccess == nil && s.runs != nil {
		run, err := s.runs.LastSuccessfulRun(ctx)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Failed to read sync history", "error", err)
		} else if run != nil {
			t := run.FinishedAt
			status.LastSuccess = &t
		}
	}
	return status, nil
}
