package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"fjacquet/budget-import/internal/importerror"
)

var currencySymbolRe = regexp.MustCompile(`[€$£¥₣₹₺₽₩฿\s]|CHF|EUR|USD|GBP`)

// StandardizeAmount converts the currency string formats seen in
// statements and receipts to a form decimal.NewFromString accepts.
// Handles "CHF 1'234.56", "€1.234,56", "$1,234.56", "1 234,56" and the
// plain variants.
func StandardizeAmount(amountStr string) string {
	amountStr = currencySymbolRe.ReplaceAllString(amountStr, "")

	if strings.Contains(amountStr, ",") && strings.Contains(amountStr, ".") {
		if strings.LastIndex(amountStr, ".") < strings.LastIndex(amountStr, ",") {
			// European format (1.234,56)
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			// US format (1,234.56)
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	} else if strings.Contains(amountStr, ",") {
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			// Comma used as decimal separator (1234,56)
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			// Comma used as thousand separator (1,234)
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}

	// Apostrophes as thousand separators (1'234.56)
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	return amountStr
}

// ParseAmount parses a candidate's raw amount string into a positive
// decimal rounded to the cent. Expenses are positive by convention, so a
// leading minus from a statement export is folded away. A zero or
// non-numeric remainder fails.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, &importerror.NormalizationError{
			Kind: importerror.UnparsableAmount, Field: "amount", Value: amountStr,
		}
	}

	amount = amount.Abs().Round(2)
	if amount.IsZero() {
		return decimal.Zero, &importerror.NormalizationError{
			Kind: importerror.UnparsableAmount, Field: "amount", Value: amountStr,
		}
	}

	return amount, nil
}
