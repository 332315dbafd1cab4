package upload

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"External Ref":   "externalref",
		"external_ref":   "externalref",
		"EXTERNAL-REF":   "externalref",
		"  Closing Date": "closingdate",
		"Contact (main)": "contactmain",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}

func TestParseCSV_MapsAliasedColumns(t *testing.T) {
	input := strings.Join([]string{
		"Tender ID,Tender Title,Organisation,Closing Date,Contact Details,Documents",
		`RFQ-1,Road resurfacing,Dept of Transport,2026-09-01,"Jane Doe jane.doe@gov.example",https://portal.example/a.pdf;https://portal.example/b.pdf`,
		"RFQ-2,Fleet maintenance,Dept of Transport,2026-10-01,,",
	}, "\n")

	records, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "RFQ-1", records[0].ExternalRef)
	assert.Equal(t, "Road resurfacing", records[0].Title)
	assert.Equal(t, "Dept of Transport", records[0].BuyerEntity)
	assert.Equal(t, "2026-09-01", records[0].ClosingDate)
	assert.Contains(t, records[0].ContactText, "jane.doe@gov.example")
	require.Len(t, records[0].Attachments, 2)
	assert.Equal(t, "a.pdf", records[0].Attachments[0].Name)
	assert.Equal(t, "https://portal.example/a.pdf", records[0].Attachments[0].URL)

	assert.Empty(t, records[1].ContactText)
	assert.Nil(t, records[1].Attachments)
}

func TestParseCSV_SkipsBlankRows(t *testing.T) {
	input := "Reference,Title\nRFQ-1,First\n,\nRFQ-2,Second\n"

	records, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "RFQ-2", records[1].ExternalRef)
}

func TestParseCSV_NoReferenceColumn(t *testing.T) {
	input := "Title,Description\nSomething,whatever\n"

	_, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reference column")
}

func TestParseCSV_EmptyFile(t *testing.T) {
	_, err := ParseCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestParseCSV_SemicolonDelimiter(t *testing.T) {
	input := "Reference;Title\nRFQ-1;Road resurfacing\n"

	records, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Road resurfacing", records[0].Title)
}

func TestParseCSV_CharsetDecoding(t *testing.T) {
	// "Café services" with 0xE9 as windows-1252 é.
	input := []byte("Reference,Title\nRFQ-1,Caf\xe9 services\n")

	records, err := ParseCSV(context.Background(), strings.NewReader(string(input)), CSVOptions{Charset: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Café services", records[0].Title)
}

func TestParseCSV_UnknownCharset(t *testing.T) {
	_, err := ParseCSV(context.Background(), strings.NewReader("Reference\nRFQ-1\n"), CSVOptions{Charset: "not-a-charset"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestParseCSV_MaxRows(t *testing.T) {
	input := "Reference\nRFQ-1\nRFQ-2\nRFQ-3\n"

	records, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func writeTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Opportunities")
	require.NoError(t, err)
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseXLSX_MapsColumns(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		{"Reference", "Title", "Buyer", "Status"},
		{"RFQ-1", "Road resurfacing", "Dept of Transport", "Open"},
		{"RFQ-2", "Fleet maintenance", "Dept of Transport", ""},
	})

	records, err := ParseXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "RFQ-1", records[0].ExternalRef)
	assert.Equal(t, "Open", records[0].Status)
	assert.Empty(t, records[1].Status)
}

func TestParseXLSX_SheetByName(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		{"Reference"},
		{"RFQ-1"},
	})

	_, err := ParseXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	records, err := ParseXLSX(path, XLSXOptions{SheetName: "Opportunities"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestParseXLSX_NoReferenceColumn(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		{"Title"},
		{"Something"},
	})

	_, err := ParseXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reference column")
}
