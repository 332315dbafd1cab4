// Package ingest implements the opportunity ingestion pipeline: per-record
// upsert, contact extraction and deduplication, and the sync job lifecycle.
package ingest

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Scraped sources emit ISO-8601 timestamps,
// UK-style DD/MM/YYYY, or a textual "Monday, 02 January 2006" form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"Monday, 02 January 2006",
	"Monday, 2 January 2006",
	"2 January 2006",
}

// ParseDate parses a scraped date string defensively. A date that matches
// no known layout returns nil rather than an error: a bad date must never
// fail the record it belongs to.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeEmail canonicalizes an email address for identity purposes.
// Contact uniqueness is case-insensitive within a tenant.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
