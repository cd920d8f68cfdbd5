package models

// RejectReason explains why a candidate did not make it into the ledger.
type RejectReason string

const (
	ReasonExactDuplicate     RejectReason = "exact_duplicate"
	ReasonNearDuplicate      RejectReason = "near_duplicate"
	ReasonNormalizationError RejectReason = "normalization_error"
	ReasonLowConfidence      RejectReason = "low_confidence"
	ReasonDatabaseError      RejectReason = "database_error"
)

// Rejection records one candidate that was dropped, with enough context
// for the user to review the decision.
type Rejection struct {
	Candidate       Candidate
	Reason          RejectReason
	MatchedLedgerID string // set for duplicates matched against the ledger
	Detail          string
}

// ImportResult summarizes one import batch. It is created at batch
// start, finalized at batch end and never mutated afterwards. The caller
// always receives a completed result, even if every unit failed.
type ImportResult struct {
	Source SourceKind

	Extracted           int // candidates produced by the provider
	NormalizedOK        int
	NormalizationFailed int
	Imported            int
	Duplicates          int
	Errors              int

	// Rejected lists duplicate and failed candidates in pipeline order
	// for user review. Near-duplicates carry the matched ledger entry.
	Rejected []Rejection

	// Warnings are batch-level conditions that did not stop the run,
	// such as a provider going unavailable partway through.
	Warnings []string
}

// AddRejection appends a rejection and bumps the matching counter.
func (r *ImportResult) AddRejection(rej Rejection) {
	r.Rejected = append(r.Rejected, rej)
	switch rej.Reason {
	case ReasonExactDuplicate, ReasonNearDuplicate:
		r.Duplicates++
	case ReasonNormalizationError:
		r.NormalizationFailed++
	default:
		r.Errors++
	}
}
