package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tendersync/internal/model"
)

// Upserter merges incoming opportunity records into the store, keyed by
// (tenant, external reference). Re-ingesting the same reference always
// updates the same row.
type Upserter struct {
	store Store
}

// NewUpserter creates an Upserter backed by the given store.
func NewUpserter(store Store) *Upserter {
	return &Upserter{store: store}
}

// Upsert merges one record. Returns the opportunity id and whether a new
// row was inserted. Updates are full overwrites: a field absent in the new
// payload clears the stored value (last write wins).
func (u *Upserter) Upsert(ctx context.Context, tenantID, syncJobID string, rec model.OpportunityRecord) (string, bool, error) {
	ref := strings.TrimSpace(rec.ExternalRef)
	if ref == "" {
		return "", false, eris.New("upsert: missing external reference")
	}

	now := time.Now().UTC()
	opp := recordToOpportunity(tenantID, syncJobID, ref, rec, now)

	existing, err := u.store.GetOpportunityByRef(ctx, tenantID, ref)
	if err != nil {
		return "", false, eris.Wrapf(err, "upsert: lookup %s", ref)
	}

	if existing != nil {
		opp.ID = existing.ID
		opp.CreatedAt = existing.CreatedAt
		if err := u.store.UpdateOpportunity(ctx, opp); err != nil {
			return "", false, eris.Wrapf(err, "upsert: update %s", ref)
		}
		return opp.ID, false, nil
	}

	opp.ID = uuid.New().String()
	opp.CreatedAt = now
	if err := u.store.InsertOpportunity(ctx, opp); err != nil {
		return "", false, eris.Wrapf(err, "upsert: insert %s", ref)
	}
	return opp.ID, true, nil
}

// recordToOpportunity maps the boundary record onto the stored shape.
func recordToOpportunity(tenantID, syncJobID, ref string, rec model.OpportunityRecord, now time.Time) *model.Opportunity {
	status := strings.TrimSpace(rec.Status)
	if status == "" {
		status = model.StatusOpen
	}

	return &model.Opportunity{
		TenantID:     tenantID,
		ExternalRef:  ref,
		Title:        rec.Title,
		BuyerEntity:  rec.BuyerEntity,
		Category:     rec.Category,
		Description:  rec.Description,
		PublishedAt:  ParseDate(rec.PublishedDate),
		ClosesAt:     ParseDate(rec.ClosingDate),
		Status:       status,
		ContactText:  rec.ContactText,
		Attachments:  rec.Attachments,
		ContentHash:  contentHash(rec),
		SyncJobID:    syncJobID,
		LastSyncedAt: now,
		UpdatedAt:    now,
	}
}

// contentHash fingerprints the last-synced payload so downstream consumers
// can detect unchanged records cheaply.
func contentHash(rec model.OpportunityRecord) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
