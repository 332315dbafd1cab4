package ingest

import (
	"context"
	"time"

	"github.com/sells-group/tendersync/internal/model"
)

// Store is the persistence surface the pipeline writes through. The lookup
// methods return (nil, nil) when no row exists.
type Store interface {
	// Opportunities
	GetOpportunityByRef(ctx context.Context, tenantID, externalRef string) (*model.Opportunity, error)
	InsertOpportunity(ctx context.Context, opp *model.Opportunity) error
	UpdateOpportunity(ctx context.Context, opp *model.Opportunity) error

	// Contacts and provenance
	GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error
	TouchContact(ctx context.Context, contactID string, seenAt time.Time, increment bool) error
	HasContactLink(ctx context.Context, opportunityID, contactID string) (bool, error)
	UpsertContactLink(ctx context.Context, link *model.ContactLink) error

	// Sync jobs and integrations
	CreateSyncJob(ctx context.Context, job *model.SyncJob) error
	FinishSyncJob(ctx context.Context, jobID string, status model.JobStatus, stats *model.SyncStats, errMsg string) error
	EnsureIntegration(ctx context.Context, tenantID, integrationID string) error
	TouchIntegration(ctx context.Context, tenantID, integrationID string, at time.Time) error
}
