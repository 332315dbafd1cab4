package model

import "time"

// JobStatus is the sync job lifecycle state. Status only moves forward;
// completed and failed are terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// SyncType identifies how a batch reached the pipeline.
type SyncType string

const (
	SyncFull        SyncType = "full"
	SyncIncremental SyncType = "incremental"
	SyncUpload      SyncType = "upload"
)

// SyncStats aggregates per-category counters for one ingestion run.
// EmailsExtracted counts total occurrences, not unique addresses.
type SyncStats struct {
	OpportunitiesAdded   int      `json:"opportunitiesAdded"`
	OpportunitiesUpdated int      `json:"opportunitiesUpdated"`
	ContactsFound        int      `json:"contactsFound"`
	EmailsExtracted      int      `json:"emailsExtracted"`
	Errors               int      `json:"errors"`
	ErrorMessages        []string `json:"errorMessages,omitempty"`
}

// SyncJob is one ingestion run for a tenant.
type SyncJob struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	IntegrationID string     `json:"integration_id,omitempty"`
	Status        JobStatus  `json:"status"`
	SyncType      SyncType   `json:"sync_type"`
	Stats         *SyncStats `json:"stats,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Integration is the per-tenant connection record for a scraping source.
// It is metadata: failure to maintain it never fails a batch.
type Integration struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Status       string     `json:"status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IntegrationConnected is the status written when a sync touches the record.
const IntegrationConnected = "connected"
