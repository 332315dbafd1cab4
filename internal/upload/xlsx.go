package upload

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tendersync/internal/model"
)

// XLSXOptions configures the XLSX record parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	MaxRows    int    // 0 = unlimited
}

// ParseXLSX reads an uploaded spreadsheet into opportunity records. The
// first row of the selected sheet must be a header.
func ParseXLSX(path string, opts XLSXOptions) ([]model.OpportunityRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "upload: open xlsx")
	}
	return parseSheet(f, opts)
}

// ParseXLSXBytes parses an in-memory spreadsheet, for HTTP upload bodies.
func ParseXLSXBytes(data []byte, opts XLSXOptions) ([]model.OpportunityRecord, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "upload: open xlsx")
	}
	return parseSheet(f, opts)
}

func parseSheet(f *xlsx.File, opts XLSXOptions) ([]model.OpportunityRecord, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("upload: empty sheet")
	}

	cols := resolveColumns(rowToStrings(sheet.Rows[0]))
	if !hasColumn(cols, colExternalRef) {
		return nil, eris.New("upload: no reference column found in header")
	}

	var records []model.OpportunityRecord
	for _, row := range sheet.Rows[1:] {
		rec := rowToRecord(rowToStrings(row), cols)
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

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("upload: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("upload: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
