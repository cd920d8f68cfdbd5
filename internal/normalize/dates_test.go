package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-import/internal/importerror"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2025, time.June, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		dateStr  string
		expected time.Time
	}{
		{"ISO format", "2025-01-10", date(2025, 1, 10)},
		{"ISO with time", "2025-01-10 09:15:00", date(2025, 1, 10)},
		{"European dotted", "10.01.2025", date(2025, 1, 10)},
		{"Short dotted", "5.1.2025", date(2025, 1, 5)},
		{"Month name", "Jan 5, 2025", date(2025, 1, 5)},
		{"Full month name", "January 5, 2025", date(2025, 1, 5)},
		{"Day first with month name", "5 January 2025", date(2025, 1, 5)},
		{"Abbreviated", "05 Jan 2025", date(2025, 1, 5)},
		{"Slash year first", "2025/01/10", date(2025, 1, 10)},
		{"Day above twelve", "13/04/2025", date(2025, 4, 13)},
		{"Month position above twelve", "04/13/2025", date(2025, 4, 13)},
		{"Equal day and month", "03/03/2025", date(2025, 3, 3)},
		{"Today", "today", date(2025, 6, 15)},
		{"Yesterday", "yesterday", date(2025, 6, 14)},
		{"Surrounding whitespace", "  2025-01-10  ", date(2025, 1, 10)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseDate(tc.dateStr, now)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, parsed)
		})
	}
}

func TestParseDateAmbiguous(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dateStr string
	}{
		{"March 4 vs April 3", "03/04/2025"},
		{"November vs December reading", "12/11/2025"},
		{"Dash separated", "03-04-2025"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDate(tc.dateStr, now)
			require.Error(t, err)

			var normErr *importerror.NormalizationError
			require.True(t, errors.As(err, &normErr))
			assert.Equal(t, importerror.AmbiguousDate, normErr.Kind)
		})
	}
}

func TestParseDateUnparsable(t *testing.T) {
	now := time.Now()

	for _, dateStr := range []string{"", "not a date", "99/99/2025", "32/13/2025"} {
		_, err := ParseDate(dateStr, now)
		require.Error(t, err, "input %q", dateStr)

		var normErr *importerror.NormalizationError
		require.True(t, errors.As(err, &normErr))
		assert.Equal(t, importerror.UnparsableDate, normErr.Kind)
	}
}

func TestParseDateDropsTimeOfDay(t *testing.T) {
	now := time.Date(2025, time.June, 15, 23, 59, 59, 0, time.UTC)

	parsed, err := ParseDate("today", now)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Hour())
	assert.Equal(t, 0, parsed.Minute())
	assert.Equal(t, time.UTC, parsed.Location())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
