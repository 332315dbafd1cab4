// Package model defines the shared data types for the ingestion pipeline.
package model

import "time"

// Attachment describes one document attached to an opportunity listing.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Opportunity is one procurement listing, keyed by (tenant_id, external_ref).
type Opportunity struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	ExternalRef  string       `json:"external_ref"`
	Title        string       `json:"title"`
	BuyerEntity  string       `json:"buyer_entity,omitempty"`
	Category     string       `json:"category,omitempty"`
	Description  string       `json:"description,omitempty"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
	ClosesAt     *time.Time   `json:"closes_at,omitempty"`
	Status       string       `json:"status"`
	ContactText  string       `json:"contact_text,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	ContentHash  string       `json:"content_hash,omitempty"`
	SyncJobID    string       `json:"sync_job_id,omitempty"`
	LastSyncedAt time.Time    `json:"last_synced_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// StatusOpen is the default status when an incoming payload omits one.
const StatusOpen = "Open"

// OpportunityRecord is one incoming row at the ingestion boundary, either
// from the crawler webhook or from an uploaded batch file. Field names are
// fixed here; upload parsing maps column aliases onto them before the
// record enters the pipeline.
type OpportunityRecord struct {
	ExternalRef   string       `json:"externalRef"`
	Title         string       `json:"title"`
	BuyerEntity   string       `json:"buyerEntity,omitempty"`
	Category      string       `json:"category,omitempty"`
	Description   string       `json:"description,omitempty"`
	PublishedDate string       `json:"publishedDate,omitempty"`
	ClosingDate   string       `json:"closingDate,omitempty"`
	Status        string       `json:"status,omitempty"`
	ContactText   string       `json:"contactText,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}
