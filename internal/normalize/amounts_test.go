package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-import/internal/importerror"
)

func TestStandardizeAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain decimal", "12.30", "12.30"},
		{"US thousands", "1,234.56", "1234.56"},
		{"European thousands", "1.234,56", "1234.56"},
		{"Comma decimal", "1234,56", "1234.56"},
		{"Comma thousands only", "1,234", "1234"},
		{"Swiss apostrophe", "1'234.56", "1234.56"},
		{"CHF prefix", "CHF 1'234.56", "1234.56"},
		{"Euro symbol", "€1.234,56", "1234.56"},
		{"Dollar symbol", "$1,234.56", "1234.56"},
		{"Space separated thousands", "1 234,56", "1234.56"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StandardizeAmount(tc.input))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "12.30", "12.30"},
		{"Negative folded to positive", "-12.30", "12.30"},
		{"Rounded to cents", "12.305", "12.31"},
		{"Currency prefix", "CHF 89.90", "89.90"},
		{"Integer", "45", "45.00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := ParseAmount(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, amount.StringFixed(2))
		})
	}
}

func TestParseAmountInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "0", "0.00", "12.30.45"} {
		_, err := ParseAmount(input)
		require.Error(t, err, "input %q", input)

		var normErr *importerror.NormalizationError
		require.True(t, errors.As(err, &normErr))
		assert.Equal(t, importerror.UnparsableAmount, normErr.Kind)
	}
}
