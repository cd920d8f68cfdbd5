package fingerprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fjacquet/budget-import/internal/models"
)

func normalized(desc string, amount string, date time.Time) models.Normalized {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return models.Normalized{
		Description: desc,
		Folded:      desc, // tests pass pre-folded values
		Amount:      amt,
		Date:        date,
		Type:        models.TypeCard,
	}
}

func TestComputeDeterministic(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	a := normalized("coffee shop", "5.50", date)
	b := normalized("coffee shop", "5.50", date)

	assert.Equal(t, Compute(a), Compute(b))
	assert.Len(t, string(Compute(a)), 64, "hex-encoded SHA-256")
}

func TestComputeSensitivity(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	base := normalized("coffee shop", "5.50", date)

	tests := []struct {
		name   string
		mutate func(n *models.Normalized)
	}{
		{"Different folded description", func(n *models.Normalized) { n.Folded = "coffee house" }},
		{"Different amount", func(n *models.Normalized) { n.Amount = decimal.NewFromFloat(5.51) }},
		{"Different date", func(n *models.Normalized) { n.Date = date.AddDate(0, 0, 1) }},
		{"Different type", func(n *models.Normalized) { n.Type = models.TypeCash }},
		{"Different card", func(n *models.Normalized) { n.Card = "Visa Gold" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			other := base
			tc.mutate(&other)
			assert.NotEqual(t, Compute(base), Compute(other))
		})
	}
}

func TestComputeCardFolded(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		cardA  string
		cardB  string
		expect assert.ComparisonAssertionFunc
	}{
		{"Case differs", "Visa Gold", "VISA GOLD", assert.Equal},
		{"Masking punctuation differs", "Visa •••• 1234", "Visa 1234", assert.Equal},
		{"Whitespace differs", " Visa  Gold ", "visa gold", assert.Equal},
		{"Different card", "Visa Gold", "Amex Platinum", assert.NotEqual},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := normalized("coffee shop", "5.50", date)
			a.Card = tc.cardA
			b := normalized("coffee shop", "5.50", date)
			b.Card = tc.cardB

			tc.expect(t, Compute(a), Compute(b))
		})
	}
}

func TestSimilar(t *testing.T) {
	opts := DefaultOptions()
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     models.Normalized
		expected bool
	}{
		{
			"Same day token subset",
			normalized("tesco store 44", "23.10", date),
			normalized("tesco store", "23.10", date),
			true,
		},
		{
			"Next day within window",
			normalized("tesco store 44", "23.10", date),
			normalized("tesco store", "23.10", date.AddDate(0, 0, 1)),
			true,
		},
		{
			"Outside window",
			normalized("tesco store 44", "23.10", date),
			normalized("tesco store", "23.10", date.AddDate(0, 0, 2)),
			false,
		},
		{
			"Different amount",
			normalized("tesco store 44", "23.10", date),
			normalized("tesco store", "23.11", date),
			false,
		},
		{
			"Low description overlap",
			normalized("tesco store 44", "23.10", date),
			normalized("shell petrol", "23.10", date),
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Similar(tc.a, tc.b, opts))
			assert.Equal(t, tc.expected, Similar(tc.b, tc.a, opts), "Similar must be symmetric")
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"Identical", "coffee shop", "coffee shop", 1.0},
		{"Subset", "tesco store 44", "tesco store", 1.0},
		{"Partial", "tesco store london", "tesco petrol london", 2.0 / 3.0},
		{"Disjoint", "coffee shop", "shell petrol", 0.0},
		{"Empty side", "coffee shop", "", 0.0},
		{"Both empty", "", "", 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, TokenOverlap(tc.a, tc.b), 1e-9)
		})
	}
}
