// Package models provides the data structures used throughout the import pipeline.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies the kind of source a RawUnit came from.
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceImage SourceKind = "image"
	SourceEmail SourceKind = "email"
)

// TxnType is the payment method of a transaction.
type TxnType string

const (
	TypeCash TxnType = "cash"
	TypeCard TxnType = "card"
)

// RawUnit is one indivisible piece of source content handed to an
// extraction provider: one PDF page's text, one decoded image, or one
// email body. Units are created per import run and discarded after
// extraction.
type RawUnit struct {
	Kind       SourceKind
	Origin     string // file path or message id
	Index      int    // page index within a PDF, 0 otherwise
	Text       string // populated for pdf and email units
	Image      []byte // populated for image units (PNG bytes)
	CapturedAt time.Time
}

// Ref returns a short provenance label for the unit, used in logs and
// rejection records.
func (u RawUnit) Ref() string {
	if u.Kind == SourcePDF {
		return fmt.Sprintf("%s#%d", u.Origin, u.Index+1)
	}
	return u.Origin
}

// Candidate is an extraction provider's proposed transaction. All fields
// except Confidence and provenance are raw strings exactly as the
// provider produced them; nothing here is trusted until it passes
// normalization.
type Candidate struct {
	Description string
	RawAmount   string
	RawDate     string
	Type        TxnType
	Card        string
	Category    string

	// Provenance, stamped by the provider.
	Provider   string
	Source     string  // RawUnit.Ref()
	Confidence float64 // 0.0-1.0, provider-defined
}

// Normalized is the canonical form of a Candidate. Two candidates that
// describe the same real-world transaction must normalize to equal or
// near-equal values; the fingerprint engine and the dedup resolver
// build on that property.
type Normalized struct {
	Description string          // trimmed, whitespace collapsed, original casing
	Folded      string          // lowercased, punctuation stripped; comparison only
	Amount      decimal.Decimal // expenses positive, two decimal places
	Date        time.Time       // calendar date at midnight UTC
	Type        TxnType
	Card        string
	Category    string

	Candidate *Candidate // back-reference for provenance and review
}

// Fingerprint is the deterministic exact-match dedup key computed from a
// Normalized transaction.
type Fingerprint string

// LedgerTransaction is the persisted record. The pipeline reads it only
// through the lookup-by-date-window contract and writes it through the
// single-transaction insert contract.
type LedgerTransaction struct {
	ID           string          `yaml:"id"`
	Date         time.Time       `yaml:"date"`
	Amount       decimal.Decimal `yaml:"amount"`
	Description  string          `yaml:"description"`
	Type         TxnType         `yaml:"type"`
	Card         string          `yaml:"card,omitempty"`
	Category     string          `yaml:"category,omitempty"`
	Fingerprint  Fingerprint     `yaml:"fingerprint"`
	ImportSource string          `yaml:"import_source,omitempty"`
	CreatedAt    time.Time       `yaml:"created_at"`
}
