// Package normalize canonicalizes extraction candidates into the
// comparable shape the fingerprint engine and dedup resolver operate on.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/models"
)

var foldStripRe = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

// CleanDescription trims whitespace and collapses internal runs while
// preserving the original casing. This is the storage form.
func CleanDescription(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Fold produces the comparison form of a description: lowercased,
// punctuation stripped, whitespace collapsed.
func Fold(s string) string {
	s = strings.ToLower(s)
	s = foldStripRe.ReplaceAllString(s, " ")
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Normalize canonicalizes a candidate. now anchors relative date terms
// ("yesterday") to the extraction time. On failure the returned error is
// a *importerror.NormalizationError and the candidate must be dropped
// from further processing.
func Normalize(c models.Candidate, now time.Time) (models.Normalized, error) {
	desc := CleanDescription(c.Description)
	if desc == "" {
		desc = "Unknown"
	}

	amount, err := ParseAmount(c.RawAmount)
	if err != nil {
		return models.Normalized{}, err
	}

	date, err := ParseDate(c.RawDate, now)
	if err != nil {
		return models.Normalized{}, err
	}

	txnType, err := normalizeType(c.Type)
	if err != nil {
		return models.Normalized{}, err
	}

	candidate := c
	return models.Normalized{
		Description: desc,
		Folded:      Fold(desc),
		Amount:      amount,
		Date:        date,
		Type:        txnType,
		Card:        CleanDescription(c.Card),
		Category:    CleanDescription(c.Category),
		Candidate:   &candidate,
	}, nil
}

// normalizeType validates the inferred payment type. Providers that
// leave it empty get the card default; statements and receipts almost
// always are.
func normalizeType(t models.TxnType) (models.TxnType, error) {
	switch models.TxnType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case "":
		return models.TypeCard, nil
	case models.TypeCash:
		return models.TypeCash, nil
	case models.TypeCard:
		return models.TypeCard, nil
	default:
		return "", &importerror.NormalizationError{
			Kind: importerror.UnparsableType, Field: "type", Value: string(t),
		}
	}
}
