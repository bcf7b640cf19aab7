package domain

import "time"

type SyncState string

const (
	SyncStateIdle            SyncState = "IDLE"
	SyncStateRunning         SyncState = "RUNNING"
	SyncStateSucceeded       SyncState = "SUCCEEDED"
	SyncStatePartiallyFailed SyncState = "PARTIALLY_FAILED"
	SyncStateFailed          SyncState = "FAILED"
)

// CollectionResult is the outcome of syncing one collection.
type CollectionResult struct {
	Success     bool   `json:"success"`
	Upserted    int    `json:"upserted"`
	Deleted     int    `json:"deleted"`
	Quarantined int    `json:"quarantined"`
	Error       string `json:"error,omitempty"`
}

type SyncResult struct {
	RunID          string                          `json:"run_id,omitempty"`
	State          SyncState                       `json:"state"`
	PerCollection  map[Collection]CollectionResult `json:"per_collection"`
	OverallSuccess bool                            `json:"overall_success"`
	Duplicate      bool                            `json:"duplicate"`
	CacheWritten   bool                            `json:"cache_written"`
	StartedAt      time.Time                       `json:"started_at"`
	FinishedAt     time.Time                       `json:"finished_at"`
}

// SyncRun is the durable record of one finished sync.
type SyncRun struct {
	RunID      string    `json:"run_id"`
	State      SyncState `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Errors     []string  `json:"errors"`
}

type SyncError struct {
	RunID      string     `json:"run_id"`
	Collection Collection `json:"collection,omitempty"`
	Message    string     `json:"message"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type SyncStatus struct {
	State        SyncState   `json:"state"`
	IsRunning    bool        `json:"is_running"`
	LastSuccess  *time.Time  `json:"last_success_timestamp"`
	LastRunID    string      `json:"last_run_id,omitempty"`
	RecentErrors []SyncError `json:"recent_errors"`
}

type CacheStats struct {
	Hits             int64      `json:"hits"`
	Misses           int64      `json:"misses"`
	HitRatio         float64    `json:"hit_ratio"`
	CatalogSizeBytes int        `json:"catalog_size_bytes"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
	Fingerprint      string     `json:"fingerprint,omitempty"`
}

// ClearResult reports an admin invalidation. Clearing an absent key is not
// an error.
type ClearResult struct {
	Key     string   `json:"key,omitempty"`
	Found   bool     `json:"found"`
	Cleared int      `json:"cleared"`
	Keys    []string `json:"keys,omitempty"`
}
