package model

import "time"

// Contact is one unique person within a tenant, identified by lower-cased email.
type Contact struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Departments      []string  `json:"departments,omitempty"`
	OpportunityCount int       `json:"opportunity_count"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}

// Source types for contact provenance links. One extractor invocation per
// source field, so the field name becomes the link's source_type.
const (
	SourceContactField = "contact_field"
	SourceDescription  = "description"
)

// ContactLink records that a contact was found in a specific opportunity,
// from a specific source field. Unique per (opportunity, contact, source_type).
type ContactLink struct {
	ID            string    `json:"id"`
	OpportunityID string    `json:"opportunity_id"`
	ContactID     string    `json:"contact_id"`
	SourceType    string    `json:"source_type"`
	SourceDetail  string    `json:"source_detail,omitempty"`
	Confidence    float64   `json:"confidence"`
	Role          string    `json:"role,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// ContactWithLinks is the read-surface shape: a contact plus the titles of
// the opportunities it was extracted from.
type ContactWithLinks struct {
	Contact
	Opportunities []LinkedOpportunity `json:"opportunities,omitempty"`
}

// LinkedOpportunity is one provenance entry on the contact read surface.
type LinkedOpportunity struct {
	OpportunityID string    `json:"opportunity_id"`
	Title         string    `json:"title"`
	SourceType    string    `json:"source_type"`
	Confidence    float64   `json:"confidence"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}
