// Package store persists opportunities, contacts, provenance links,
// department mappings, sync jobs, and integrations. Two backends exist:
// Postgres (pgxpool) and SQLite (modernc), selected by config.
package store

import (
	"context"
	"time"

	"github.com/sells-group/tendersync/internal/model"
)

// OpportunityFilter specifies criteria for listing opportunities.
type OpportunityFilter struct {
	TenantID    string `json:"tenant_id"`
	Status      string `json:"status,omitempty"`
	BuyerEntity string `json:"buyer_entity,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline and
// its read surface. Lookup methods return (nil, nil) when no row exists.
type Store interface {
	// Opportunities
	GetOpportunityByRef(ctx context.Context, tenantID, externalRef string) (*model.Opportunity, error)
	InsertOpportunity(ctx context.Context, opp *model.Opportunity) error
	UpdateOpportunity(ctx context.Context, opp *model.Opportunity) error
	ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error)
	DistinctBuyerEntities(ctx context.Context, tenantID string) ([]string, error)
	CountOpportunities(ctx context.Context) (int, error)

	// Contacts and provenance
	GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error
	TouchContact(ctx context.Context, contactID string, seenAt time.Time, increment bool) error
	HasContactLink(ctx context.Context, opportunityID, contactID string) (bool, error)
	UpsertContactLink(ctx context.Context, link *model.ContactLink) error
	ListContacts(ctx context.Context, tenantID string, limit, offset int) ([]model.ContactWithLinks, error)
	CountContacts(ctx context.Context) (int, error)

	// Department mappings
	ListMappings(ctx context.Context, tenantID string) ([]model.DepartmentMapping, error)
	CreateMapping(ctx context.Context, m *model.DepartmentMapping) error
	UpdateMapping(ctx context.Context, m *model.DepartmentMapping) error
	DeleteMapping(ctx context.Context, tenantID, id string) error
	ImportMappings(ctx context.Context, mappings []model.DepartmentMapping) (int64, error)

	// Sync jobs
	CreateSyncJob(ctx context.Context, job *model.SyncJob) error
	FinishSyncJob(ctx context.Context, jobID string, status model.JobStatus, stats *model.SyncStats, errMsg string) error
	ListSyncJobs(ctx context.Context, tenantID string, limit int) ([]model.SyncJob, error)

	// Integrations
	EnsureIntegration(ctx context.Context, tenantID, integrationID string) error
	TouchIntegration(ctx context.Context, tenantID, integrationID string, at time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
