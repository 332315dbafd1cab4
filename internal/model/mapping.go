package model

import "time"

// MatchType identifies how a mapping rule's pattern is compared against a
// raw buyer entity. The resolver evaluates exact before contains; regex and
// fuzzy are recognized in the data model and available as extra strategies.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
	MatchFuzzy    MatchType = "fuzzy"
)

// Valid reports whether t is one of the recognized match types.
func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchContains, MatchRegex, MatchFuzzy:
		return true
	}
	return false
}

// DepartmentMapping maps a raw buyer-entity pattern to a canonical
// department and optional agency.
type DepartmentMapping struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	SourcePattern string    `json:"source_pattern"`
	MatchType     MatchType `json:"match_type"`
	Department    string    `json:"department"`
	Agency        string    `json:"agency,omitempty"`
	Confidence    float64   `json:"confidence"`
	Approved      bool      `json:"approved"`
	AutoGenerated bool      `json:"auto_generated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Resolution is the outcome of resolving a raw buyer entity. Unapproved
// rules still match; callers decide display policy from Approved.
type Resolution struct {
	Department string  `json:"department"`
	Agency     string  `json:"agency,omitempty"`
	Confidence float64 `json:"confidence"`
	Approved   bool    `json:"approved"`
}
