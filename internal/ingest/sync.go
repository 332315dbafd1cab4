package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tendersync/internal/model"
)

// Extraction confidence by source field. The structured contact field is a
// stronger signal than an address buried in the description.
const (
	confidenceContactField = 0.9
	confidenceDescription  = 0.6
)

// Request is one batch ingestion call.
type Request struct {
	TenantID      string
	IntegrationID string
	SyncType      model.SyncType
	Records       []model.OpportunityRecord
}

// Report summarizes the outcome of a batch. Success reflects the job's
// terminal status; callers must check Stats.Errors to detect partial
// failure, since a batch with some failed records is still a completed job.
type Report struct {
	JobID   string
	Status  model.JobStatus
	Stats   model.SyncStats
	Success bool
}

// Pipeline is the sync job orchestrator.
type Pipeline struct {
	store       Store
	upserter    *Upserter
	registry    *Registry
	concurrency int
	emailLocks  keyedMutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets the number of records processed in parallel.
// Contact writes for the same normalized email are serialized regardless,
// so two opportunities sharing a contact cannot lose an increment.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPipeline creates the orchestrator. Default concurrency is 1: records
// are processed sequentially.
func NewPipeline(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		upserter:    NewUpserter(store),
		registry:    NewRegistry(store),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives one batch to completion. Per-record failures are recorded and
// skipped; only setup-phase failures (invalid input) return an error. The
// job is marked failed only when every record in the batch failed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if req.TenantID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "sync: missing tenant id")
	}
	if len(req.Records) == 0 {
		return nil, eris.Wrap(ErrInvalidInput, "sync: empty batch")
	}
	if req.SyncType == "" {
		req.SyncType = model.SyncIncremental
	}
	if req.IntegrationID == "" {
		req.IntegrationID = "default"
	}

	log := zap.L().With(
		zap.String("component", "ingest.pipeline"),
		zap.String("tenant", req.TenantID),
	)

	// The integration record is metadata, not the opportunity data itself:
	// degrade, don't fail.
	if err := p.store.EnsureIntegration(ctx, req.TenantID, req.IntegrationID); err != nil {
		log.Warn("integration setup failed, proceeding without it", zap.Error(err))
	}

	now := time.Now().UTC()
	job := &model.SyncJob{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		IntegrationID: req.IntegrationID,
		Status:        model.JobRunning,
		SyncType:      req.SyncType,
		StartedAt:     now,
	}
	if err := p.store.CreateSyncJob(ctx, job); err != nil {
		// Opportunities may still be durably written; return best-effort
		// stats rather than aborting.
		log.Error("failed to persist sync job", zap.Error(err))
	}

	log.Info("starting sync",
		zap.String("job", job.ID),
		zap.String("sync_type", string(req.SyncType)),
		zap.Int("records", len(req.Records)),
	)

	stats := &Stats{}
	start := time.Now()

	if p.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for _, rec := range req.Records {
			g.Go(func() error {
				p.processRecord(gctx, req.TenantID, job.ID, rec, stats)
				return nil // individual failures never abort the batch
			})
		}
		_ = g.Wait()
	} else {
		for _, rec := range req.Records {
			p.processRecord(ctx, req.TenantID, job.ID, rec, stats)
		}
	}

	status := model.JobCompleted
	var jobErr string
	if stats.errors() == len(req.Records) {
		// Partial success is success; only a fully failed batch fails the job.
		status = model.JobFailed
		jobErr = fmt.Sprintf("all %d records failed", len(req.Records))
	}

	snapshot := stats.Snapshot()
	if err := p.store.FinishSyncJob(ctx, job.ID, status, snapshot, jobErr); err != nil {
		log.Error("failed to finish sync job", zap.Error(err))
	}

	// The connection succeeded even if some records did not.
	if err := p.store.TouchIntegration(ctx, req.TenantID, req.IntegrationID, time.Now().UTC()); err != nil {
		log.Warn("failed to touch integration", zap.Error(err))
	}

	log.Info("sync finished",
		zap.String("job", job.ID),
		zap.String("status", string(status)),
		zap.Int("added", snapshot.OpportunitiesAdded),
		zap.Int("updated", snapshot.OpportunitiesUpdated),
		zap.Int("contacts", snapshot.ContactsFound),
		zap.Int("emails", snapshot.EmailsExtracted),
		zap.Int("errors", snapshot.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Report{
		JobID:   job.ID,
		Status:  status,
		Stats:   *snapshot,
		Success: status == model.JobCompleted,
	}, nil
}

// processRecord is one unit of work: upsert, then contact extraction.
// Upsert always precedes extraction, so a link always references an
// opportunity row that already exists. Failures are folded into stats.
func (p *Pipeline) processRecord(ctx context.Context, tenantID, jobID string, rec model.OpportunityRecord, stats *Stats) {
	oppID, inserted, err := p.upserter.Upsert(ctx, tenantID, jobID, rec)
	if err != nil {
		stats.addError((&RecordError{Ref: rec.ExternalRef, Err: err}).Error())
		return
	}
	if inserted {
		stats.addInserted()
	} else {
		stats.addUpdated()
	}

	fields := []struct {
		text       string
		sourceType string
		confidence float64
	}{
		{rec.ContactText, model.SourceContactField, confidenceContactField},
		{rec.Description, model.SourceDescription, confidenceDescription},
	}

	for _, f := range fields {
		for _, email := range ExtractEmails(f.text) {
			stats.addEmails(1)

			unlock := p.emailLocks.lock(NormalizeEmail(email))
			_, created, err := p.registry.Record(ctx, tenantID, email, oppID, f.sourceType, email, f.confidence)
			unlock()

			if err != nil {
				stats.addError((&RecordError{Ref: rec.ExternalRef, Err: err}).Error())
				return
			}
			if created {
				stats.addContact()
			}
		}
	}
}

// keyedMutex serializes work per key. Used to serialize contact upserts of
// the same normalized email across concurrent record workers.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
