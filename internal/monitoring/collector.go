// Package monitoring gathers pipeline health metrics and raises webhook
// alerts when sync failure rates or unmapped-buyer backlogs breach their
// thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tendersync/internal/model"
	"github.com/sells-group/tendersync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Sync job metrics (within lookback window).
	SyncTotal     int     `json:"sync_total"`
	SyncCompleted int     `json:"sync_completed"`
	SyncFailed    int     `json:"sync_failed"`
	SyncRunning   int     `json:"sync_running"`
	SyncFailRate  float64 `json:"sync_fail_rate"`

	// Ingestion totals from job stats (within lookback window).
	OpportunitiesAdded   int `json:"opportunities_added"`
	OpportunitiesUpdated int `json:"opportunities_updated"`
	ContactsFound        int `json:"contacts_found"`
	RecordErrors         int `json:"record_errors"`

	// Whole-store counts.
	OpportunityCount int `json:"opportunity_count"`
	ContactCount     int `json:"contact_count"`

	// Buyer entities with no mapping rule, across watched tenants.
	UnmappedBuyers int `json:"unmapped_buyers"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// UnmappedLister abstracts the resolver method needed by the collector.
type UnmappedLister interface {
	Unmapped(ctx context.Context, tenantID string) ([]string, error)
}

// Collector gathers metrics from the store and the mapping resolver.
type Collector struct {
	store    store.Store
	unmapped UnmappedLister
	tenants  []string
}

// NewCollector creates a metrics collector. tenants lists the tenant IDs
// whose unmapped-buyer backlog is watched; nil disables that metric.
func NewCollector(st store.Store, unmapped UnmappedLister, tenants []string) *Collector {
	return &Collector{store: st, unmapped: unmapped, tenants: tenants}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	// All tenants; jobs are ordered newest first so the window fits in one page.
	jobs, err := c.store.ListSyncJobs(ctx, "", 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sync jobs")
	}

	for _, j := range jobs {
		if j.StartedAt.Before(cutoff) {
			continue
		}
		snap.SyncTotal++
		switch j.Status {
		case model.JobCompleted:
			snap.SyncCompleted++
		case model.JobFailed:
			snap.SyncFailed++
		case model.JobRunning, model.JobPending:
			snap.SyncRunning++
		}
		if j.Stats != nil {
			snap.OpportunitiesAdded += j.Stats.OpportunitiesAdded
			snap.OpportunitiesUpdated += j.Stats.OpportunitiesUpdated
			snap.ContactsFound += j.Stats.ContactsFound
			snap.RecordErrors += j.Stats.Errors
		}
	}

	if finished := snap.SyncCompleted + snap.SyncFailed; finished > 0 {
		snap.SyncFailRate = float64(snap.SyncFailed) / float64(finished)
	}

	if snap.OpportunityCount, err = c.store.CountOpportunities(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: count opportunities")
	}
	if snap.ContactCount, err = c.store.CountContacts(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: count contacts")
	}

	if c.unmapped != nil {
		for _, tenant := range c.tenants {
			buyers, err := c.unmapped.Unmapped(ctx, tenant)
			if err != nil {
				return nil, eris.Wrapf(err, "monitoring: unmapped buyers for %s", tenant)
			}
			snap.UnmappedBuyers += len(buyers)
		}
	}

	return snap, nil
}
