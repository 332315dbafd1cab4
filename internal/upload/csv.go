package upload

import (
	"context"
	"encoding/csv"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/tendersync/internal/model"
)

// CSVOptions configures the CSV record parser.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // source encoding name (e.g. "windows-1252"); "" = UTF-8
	MaxRows   int    // 0 = unlimited
}

// ParseCSV reads an uploaded CSV export into opportunity records. The first
// row must be a header; unknown columns are ignored.
func ParseCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.OpportunityRecord, error) {
	if opts.Charset != "" {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "upload: unsupported charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("upload: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "upload: read header")
	}

	cols := resolveColumns(header)
	if !hasColumn(cols, colExternalRef) {
		return nil, eris.New("upload: no reference column found in header")
	}

	var records []model.OpportunityRecord
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "upload: context cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "upload: read row")
		}

		rec := rowToRecord(row, cols)
		if isEmptyRecord(rec) {
			continue
		}
		records = append(records, rec)

		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			break
		}
	}
	return records, nil
}

func hasColumn(cols map[int]column, want column) bool {
	for _, c := range cols {
		if c == want {
			return true
		}
	}
	return false
}

// rowToRecord maps one data row onto a record via the resolved columns.
// Cells beyond the header width are ignored.
func rowToRecord(row []string, cols map[int]column) model.OpportunityRecord {
	var rec model.OpportunityRecord
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch cols[i] {
		case colExternalRef:
			rec.ExternalRef = cell
		case colTitle:
			rec.Title = cell
		case colBuyerEntity:
			rec.BuyerEntity = cell
		case colCategory:
			rec.Category = cell
		case colDescription:
			rec.Description = cell
		case colPublishedDate:
			rec.PublishedDate = cell
		case colClosingDate:
			rec.ClosingDate = cell
		case colStatus:
			rec.Status = cell
		case colContactText:
			rec.ContactText = cell
		case colAttachments:
			rec.Attachments = parseAttachments(cell)
		}
	}
	return rec
}

// parseAttachments splits a semicolon-separated URL list into attachments.
func parseAttachments(cell string) []model.Attachment {
	var attachments []model.Attachment
	for _, u := range strings.Split(cell, ";") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		attachments = append(attachments, model.Attachment{
			Name: path.Base(u),
			URL:  u,
		})
	}
	return attachments
}

func isEmptyRecord(rec model.OpportunityRecord) bool {
	return rec.ExternalRef == "" && rec.Title == "" && rec.Description == ""
}
