// Package upload parses operator-supplied CSV and XLSX exports into
// opportunity records for the ingestion pipeline.
package upload

import "strings"

// column identifies a logical record field resolved from a header cell.
type column int

const (
	colUnknown column = iota
	colExternalRef
	colTitle
	colBuyerEntity
	colCategory
	colDescription
	colPublishedDate
	colClosingDate
	colStatus
	colContactText
	colAttachments
)

// columnAliases maps normalized header names to logical columns. Portal
// exports disagree on header wording, so each column carries the spellings
// seen in the wild.
var columnAliases = map[string]column{
	"reference":         colExternalRef,
	"ref":               colExternalRef,
	"externalref":       colExternalRef,
	"externalreference": colExternalRef,
	"tenderid":          colExternalRef,
	"tenderref":         colExternalRef,
	"opportunityid":     colExternalRef,

	"title":       colTitle,
	"name":        colTitle,
	"tendertitle": colTitle,

	"buyer":        colBuyerEntity,
	"buyerentity":  colBuyerEntity,
	"buyername":    colBuyerEntity,
	"organisation": colBuyerEntity,
	"organization": colBuyerEntity,
	"agency":       colBuyerEntity,
	"department":   colBuyerEntity,

	"category":  colCategory,
	"cpv":       colCategory,
	"unspsc":    colCategory,
	"sector":    colCategory,
	"worktype":  colCategory,

	"description": colDescription,
	"summary":     colDescription,
	"details":     colDescription,

	"published":       colPublishedDate,
	"publisheddate":   colPublishedDate,
	"publicationdate": colPublishedDate,
	"dateposted":      colPublishedDate,
	"issued":          colPublishedDate,

	"closing":     colClosingDate,
	"closingdate": colClosingDate,
	"closes":      colClosingDate,
	"deadline":    colClosingDate,
	"closedate":   colClosingDate,
	"duedate":     colClosingDate,

	"status": colStatus,
	"state":  colStatus,

	"contact":        colContactText,
	"contacts":       colContactText,
	"contactdetails": colContactText,
	"contactperson":  colContactText,
	"contacttext":    colContactText,

	"attachments":   colAttachments,
	"attachment":    colAttachments,
	"documents":     colAttachments,
	"attachmenturl": colAttachments,
}

// normalizeHeader lowercases a header cell and strips everything but letters
// and digits, so "External Ref", "external_ref" and "External-Ref" collapse
// to the same key.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveColumns maps each header cell position to a logical column.
func resolveColumns(header []string) map[int]column {
	cols := make(map[int]column, len(header))
	for i, h := range header {
		if c, ok := columnAliases[normalizeHeader(h)]; ok {
			cols[i] = c
		}
	}
	return cols
}
