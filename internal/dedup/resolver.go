// Package dedup decides, per normalized candidate, whether it is new, an
// exact duplicate or a near-duplicate of something already seen — either
// earlier in the same batch or already persisted in the ledger.
package dedup

import (
	"context"

	"fjacquet/budget-import/internal/fingerprint"
	"fjacquet/budget-import/internal/ledger"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
	"fjacquet/budget-import/internal/normalize"
)

// Status is the terminal state of a candidate after resolution.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusExactDuplicate Status = "EXACT_DUPLICATE"
	StatusNearDuplicate  Status = "NEAR_DUPLICATE"
)

// Decision is the resolver's verdict on one candidate. Exact duplicates
// are always rejected. Near-duplicates are rejected by default but
// retained with their match for user review; two identical coffee
// purchases on consecutive days are legitimately distinct, so they are
// never silently merged.
type Decision struct {
	Normalized  models.Normalized
	Fingerprint models.Fingerprint
	Status      Status

	// Resolved reports that the candidate completed both dedup passes
	// (or was already caught in pass 1). A StatusNew decision with
	// Resolved false was never checked against the ledger — the lookup
	// failed first — and must not be committed.
	Resolved bool

	// MatchedBatchIndex points at the earlier in-batch candidate this one
	// duplicates (-1 when the match came from the ledger).
	MatchedBatchIndex int

	// MatchedLedgerID identifies the persisted transaction this one
	// duplicates ("" when the match came from the batch).
	MatchedLedgerID string
}

// Resolver runs the two-pass dedup algorithm.
type Resolver struct {
	lookup ledger.Lookup
	opts   fingerprint.Options
	log    logging.Logger
}

// NewResolver creates a resolver against the given ledger lookup.
func NewResolver(lookup ledger.Lookup, opts fingerprint.Options, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Resolver{lookup: lookup, opts: opts, log: log}
}

// Resolve decides the fate of each candidate. The input order is
// significant: the intra-batch pass is first-seen-wins, so candidates
// must arrive in stable source order for results to be reproducible.
func (r *Resolver) Resolve(ctx context.Context, batch []models.Normalized) ([]Decision, error) {
	decisions := make([]Decision, len(batch))

	// Pass 1: intra-batch. A later candidate that exactly or nearly
	// matches an earlier accepted one is a duplicate of it.
	for i, n := range batch {
		decisions[i] = Decision{
			Normalized:        n,
			Fingerprint:       fingerprint.Compute(n),
			Status:            StatusNew,
			MatchedBatchIndex: -1,
		}

		for j := 0; j < i; j++ {
			if decisions[j].Status != StatusNew {
				continue
			}
			if decisions[j].Fingerprint == decisions[i].Fingerprint {
				decisions[i].Status = StatusExactDuplicate
				decisions[i].MatchedBatchIndex = j
				break
			}
			if fingerprint.Similar(batch[j], n, r.opts) {
				decisions[i].Status = StatusNearDuplicate
				decisions[i].MatchedBatchIndex = j
				break
			}
		}

		if decisions[i].Status != StatusNew {
			decisions[i].Resolved = true // in-batch duplicates need no ledger pass
		}
	}

	// Pass 2: ledger. Candidates surviving pass 1 are checked against
	// persisted transactions within the date window.
	for i := range decisions {
		if decisions[i].Status != StatusNew {
			continue
		}
		if err := ctx.Err(); err != nil {
			return decisions, err
		}

		n := decisions[i].Normalized
		existing, err := r.lookup.LookupNear(ctx, n.Date, n.Amount, r.opts.WindowDays)
		if err != nil {
			// Remaining decisions stay unresolved; the caller must not
			// treat them as new.
			return decisions, err
		}
		decisions[i].Resolved = true

		for _, txn := range existing {
			if txn.Fingerprint == decisions[i].Fingerprint {
				decisions[i].Status = StatusExactDuplicate
				decisions[i].MatchedLedgerID = txn.ID
				break
			}
		}
		if decisions[i].Status != StatusNew {
			continue
		}

		for _, txn := range existing {
			if fingerprint.Similar(ledgerShape(txn), n, r.opts) {
				decisions[i].Status = StatusNearDuplicate
				decisions[i].MatchedLedgerID = txn.ID
				r.log.Debug("Near-duplicate against ledger",
					logging.Field{Key: "candidate", Value: n.Description},
					logging.Field{Key: "ledger_id", Value: txn.ID})
				break
			}
		}
	}

	return decisions, nil
}

// ledgerShape lifts a persisted transaction into the comparable shape
// the similarity predicate expects.
func ledgerShape(txn models.LedgerTransaction) models.Normalized {
	return models.Normalized{
		Description: txn.Description,
		Folded:      normalize.Fold(txn.Description),
		Amount:      txn.Amount,
		Date:        txn.Date,
		Type:        txn.Type,
		Card:        txn.Card,
	}
}
