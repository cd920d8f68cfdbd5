// Package importerror defines the error taxonomy of the import pipeline.
// Every error here is accumulated into the batch result; none of them is
// allowed to abort a batch.
package importerror

import "fmt"

// ReaderError represents a source unit that could not be read (corrupt
// page, undecodable image, unparseable message). The unit is skipped and
// the error recorded.
type ReaderError struct {
	Source string
	Unit   string
	Err    error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("%s: failed to read unit '%s': %v", e.Source, e.Unit, e.Err)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// ProviderUnavailableError represents a transport-level failure talking
// to an extraction provider (network down, model server unreachable).
// The coordinator retries once, then abandons remaining units for that
// provider with a batch-level warning.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedExtractionError represents provider output that does not fit
// the expected schema even after the stricter retry prompt. The unit is
// dropped and recorded; there is no retry storm.
type MalformedExtractionError struct {
	Provider string
	Unit     string
	Snippet  string // leading part of the offending output, for debugging
}

func (e *MalformedExtractionError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%s: malformed extraction output for unit '%s': %q",
			e.Provider, e.Unit, e.Snippet)
	}
	return fmt.Sprintf("%s: malformed extraction output for unit '%s'", e.Provider, e.Unit)
}

// NormalizationKind discriminates normalization failures.
type NormalizationKind string

const (
	AmbiguousDate    NormalizationKind = "ambiguous_date"
	UnparsableAmount NormalizationKind = "unparsable_amount"
	UnparsableDate   NormalizationKind = "unparsable_date"
	UnparsableType   NormalizationKind = "unparsable_type"
)

// NormalizationError represents a candidate that could not be brought
// into canonical form. The candidate is dropped from further processing
// and surfaced in the batch result.
type NormalizationError struct {
	Kind  NormalizationKind
	Field string
	Value string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed (%s): %s='%s'", e.Kind, e.Field, e.Value)
}

// DatabaseError represents a ledger rejecting an insert, for example on
// a referential constraint. The candidate moves to the error count and
// the batch continues.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
