package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2026-03-15T10:30:00Z", time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"iso no zone", "2026-03-15T10:30:00", time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"date only", "2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"uk slash", "15/03/2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"textual", "Monday, 02 March 2026", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"textual single digit", "Monday, 2 March 2026", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"short textual", "2 March 2026", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"whitespace", "  2026-03-15  ", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			require.NotNil(t, got)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseDateUnparseable(t *testing.T) {
	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("   "))
	assert.Nil(t, ParseDate("not a date"))
	assert.Nil(t, ParseDate("31/31/2026"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane.doe@gov.uk", NormalizeEmail("Jane.Doe@GOV.UK"))
	assert.Equal(t, "jane@gov.uk", NormalizeEmail("  jane@gov.uk  "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
