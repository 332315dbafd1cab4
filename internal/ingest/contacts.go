package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tendersync/internal/model"
)

// Registry deduplicates contacts by normalized email within a tenant and
// maintains the opportunity-contact provenance links.
type Registry struct {
	store Store
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Record registers one email occurrence extracted from an opportunity
// field. Returns the contact id and whether the contact is new to the
// tenant.
//
// The opportunity_count increment is gated on the first link between this
// contact and this opportunity, not on every extraction event, so repeated
// syncs of an unchanged opportunity do not inflate the count.
func (r *Registry) Record(ctx context.Context, tenantID, email, opportunityID, sourceType, sourceDetail string, confidence float64) (string, bool, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", false, eris.New("contacts: empty email")
	}

	now := time.Now().UTC()

	contact, err := r.store.GetContactByEmail(ctx, tenantID, normalized)
	if err != nil {
		return "", false, eris.Wrapf(err, "contacts: lookup %s", normalized)
	}

	created := contact == nil
	if created {
		contact = &model.Contact{
			ID:               uuid.New().String(),
			TenantID:         tenantID,
			Email:            normalized,
			OpportunityCount: 1,
			FirstSeenAt:      now,
			LastSeenAt:       now,
		}
		if err := r.store.InsertContact(ctx, contact); err != nil {
			return "", false, eris.Wrapf(err, "contacts: insert %s", normalized)
		}
	}

	linked, err := r.store.HasContactLink(ctx, opportunityID, contact.ID)
	if err != nil {
		return "", false, eris.Wrapf(err, "contacts: check link %s", normalized)
	}

	link := &model.ContactLink{
		ID:            uuid.New().String(),
		OpportunityID: opportunityID,
		ContactID:     contact.ID,
		SourceType:    sourceType,
		SourceDetail:  sourceDetail,
		Confidence:    confidence,
		FirstSeenAt:   now,
		LastSeenAt:    now,
	}
	if err := r.store.UpsertContactLink(ctx, link); err != nil {
		return "", false, eris.Wrapf(err, "contacts: link %s", normalized)
	}

	if !created {
		// Bump last_seen always; count only when this opportunity was not
		// already linked through any source field.
		if err := r.store.TouchContact(ctx, contact.ID, now, !linked); err != nil {
			return "", false, eris.Wrapf(err, "contacts: touch %s", normalized)
		}
	}

	return contact.ID, created, nil
}
