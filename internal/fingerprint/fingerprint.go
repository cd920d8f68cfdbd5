// Package fingerprint computes the dedup keys of normalized
// transactions: an exact-match content digest and a near-duplicate
// similarity predicate.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"fjacquet/budget-import/internal/models"
	"fjacquet/budget-import/internal/normalize"
)

// Options tunes near-duplicate detection. The defaults are heuristics,
// not load-bearing constants; callers wire them from configuration.
type Options struct {
	// WindowDays is the maximum calendar-day distance between two
	// transactions that may still describe the same real-world event
	// (posting-date lag between a receipt and a statement).
	WindowDays int

	// Threshold is the minimum token-overlap ratio between folded
	// descriptions.
	Threshold float64
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{WindowDays: 1, Threshold: 0.6}
}

// Compute returns the deterministic exact-duplicate key of a normalized
// transaction. Identical (date, amount-to-the-cent, folded description,
// type, folded card) always produce identical fingerprints; the field
// order in the hash input is fixed here and nowhere else. The card is
// folded like the description so "Visa •••• 1234" and "visa 1234" key
// the same.
func Compute(n models.Normalized) models.Fingerprint {
	input := fmt.Sprintf("%s|%s|%s|%s|%s",
		n.Date.Format("2006-01-02"),
		n.Amount.StringFixed(2),
		n.Folded,
		n.Type,
		normalize.Fold(n.Card),
	)
	sum := sha256.Sum256([]byte(input))
	return models.Fingerprint(hex.EncodeToString(sum[:]))
}

// Similar reports whether two normalized transactions likely describe
// the same real-world event despite non-identical fields: dates within
// the window, amounts equal to the cent, and folded descriptions sharing
// enough tokens. Symmetric in its arguments.
func Similar(a, b models.Normalized, opts Options) bool {
	days := a.Date.Sub(b.Date).Hours() / 24
	if days < 0 {
		days = -days
	}
	if days > float64(opts.WindowDays) {
		return false
	}

	if !a.Amount.Equal(b.Amount) {
		return false
	}

	return TokenOverlap(a.Folded, b.Folded) >= opts.Threshold
}

// TokenOverlap returns the ratio of shared tokens to the smaller token
// set of the two folded descriptions. 1.0 when one description's tokens
// are a subset of the other's, 0.0 when nothing is shared.
func TokenOverlap(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	smaller, larger := tokensA, tokensB
	if len(tokensB) < len(tokensA) {
		smaller, larger = tokensB, tokensA
	}

	shared := 0
	for tok := range smaller {
		if _, ok := larger[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
