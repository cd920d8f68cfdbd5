// Package importer drives one import batch through the pipeline:
// source readers -> extraction provider -> normalizer -> fingerprint ->
// dedup resolver -> ledger commit, accumulating the batch result.
package importer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fjacquet/budget-import/internal/dedup"
	"fjacquet/budget-import/internal/extract"
	"fjacquet/budget-import/internal/fingerprint"
	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/ledger"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
	"fjacquet/budget-import/internal/normalize"
)

// extractWorkers bounds parallel provider calls. Extraction blocks on
// network or a local model server, so a small pool is enough.
const extractWorkers = 4

// Coordinator owns the state of one import invocation: the provider,
// the resolver and the ledger writer. It is constructed per batch and
// not shared, so concurrent imports never share connections.
type Coordinator struct {
	provider      extract.Provider
	resolver      *dedup.Resolver
	writer        ledger.Writer
	minConfidence float64
	log           logging.Logger
}

// NewCoordinator wires a coordinator for one batch.
func NewCoordinator(provider extract.Provider, lookup ledger.Lookup, writer ledger.Writer, opts fingerprint.Options, minConfidence float64, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Coordinator{
		provider:      provider,
		resolver:      dedup.NewResolver(lookup, opts, log),
		writer:        writer,
		minConfidence: minConfidence,
		log:           log,
	}
}

// Run processes one batch of units. unitErrs carries reader-stage
// failures (unreadable pages, undecodable images); they are recorded and
// the batch continues. Run always returns a completed result, even when
// every unit failed. Cancelling the context stops issuing further work
// and finalizes the result with whatever completed.
func (c *Coordinator) Run(ctx context.Context, source models.SourceKind, units []models.RawUnit, unitErrs []error) *models.ImportResult {
	result := &models.ImportResult{Source: source}

	for _, err := range unitErrs {
		result.Errors++
		result.Warnings = append(result.Warnings, err.Error())
	}

	candidates := c.extractAll(ctx, units, result)
	result.Extracted = len(candidates)

	normalized := c.normalizeAll(candidates, result)

	decisions, err := c.resolver.Resolve(ctx, normalized)
	if err != nil {
		result.Warnings = append(result.Warnings, "dedup resolution incomplete: "+err.Error())
	}

	c.commit(ctx, decisions, source, result)

	c.log.Info("Import batch finished",
		logging.Field{Key: logging.FieldSource, Value: string(source)},
		logging.Field{Key: "extracted", Value: result.Extracted},
		logging.Field{Key: "imported", Value: result.Imported},
		logging.Field{Key: "duplicates", Value: result.Duplicates},
		logging.Field{Key: "errors", Value: result.Errors})
	return result
}

// indexedCandidates preserves unit order across the worker pool so the
// intra-batch dedup pass sees a stable, reproducible ordering.
type indexedCandidates struct {
	index      int
	candidates []models.Candidate
	err        error
}

// extractAll runs the provider over all units with a small worker pool.
// Each call gets one retry on transient unavailability; a second
// transport failure abandons the remaining units with a batch warning,
// since the provider is down and a retry storm helps nobody.
func (c *Coordinator) extractAll(ctx context.Context, units []models.RawUnit, result *models.ImportResult) []models.Candidate {
	if len(units) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := extractWorkers
	if len(units) < workers {
		workers = len(units)
	}

	unitChan := make(chan int)
	resultChan := make(chan indexedCandidates, len(units))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range unitChan {
				cands, err := c.extractUnit(ctx, units[i])
				resultChan <- indexedCandidates{index: i, candidates: cands, err: err}

				var unavailable *importerror.ProviderUnavailableError
				if errors.As(err, &unavailable) {
					cancel() // provider is down; stop issuing work
					return
				}
			}
		}()
	}

	go func() {
		defer close(unitChan)
		for i := range units {
			select {
			case unitChan <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	collected := make([]indexedCandidates, 0, len(units))
	for res := range resultChan {
		collected = append(collected, res)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	var all []models.Candidate
	providerDown := false
	for _, res := range collected {
		if res.err != nil {
			var unavailable *importerror.ProviderUnavailableError
			if errors.As(res.err, &unavailable) {
				providerDown = true
			}
			result.Errors++
			result.Warnings = append(result.Warnings, res.err.Error())
			continue
		}
		all = append(all, res.candidates...)
	}

	if providerDown {
		result.Warnings = append(result.Warnings,
			"provider "+c.provider.Name()+" became unavailable; remaining units were not processed")
	}
	return all
}

// extractUnit calls the provider with one retry on transient failure.
// Malformed-output failures are not retried here; the provider already
// performed its single stricter-prompt retry.
func (c *Coordinator) extractUnit(ctx context.Context, unit models.RawUnit) ([]models.Candidate, error) {
	cands, err := c.provider.Extract(ctx, unit)
	if err == nil {
		return cands, nil
	}

	var unavailable *importerror.ProviderUnavailableError
	if !errors.As(err, &unavailable) || ctx.Err() != nil {
		return nil, err
	}

	c.log.Warn("Provider call failed, retrying once",
		logging.Field{Key: logging.FieldProvider, Value: c.provider.Name()},
		logging.Field{Key: logging.FieldUnit, Value: unit.Ref()})
	return c.provider.Extract(ctx, unit)
}

// normalizeAll canonicalizes candidates in order, recording failures.
// Candidates below the confidence floor are unusable extraction output
// and count as errors.
func (c *Coordinator) normalizeAll(candidates []models.Candidate, result *models.ImportResult) []models.Normalized {
	now := time.Now().UTC()
	normalized := make([]models.Normalized, 0, len(candidates))

	for _, cand := range candidates {
		if cand.Confidence < c.minConfidence {
			result.AddRejection(models.Rejection{
				Candidate: cand,
				Reason:    models.ReasonLowConfidence,
				Detail:    "extraction confidence below configured floor",
			})
			continue
		}

		n, err := normalize.Normalize(cand, now)
		if err != nil {
			result.AddRejection(models.Rejection{
				Candidate: cand,
				Reason:    models.ReasonNormalizationError,
				Detail:    err.Error(),
			})
			continue
		}

		result.NormalizedOK++
		normalized = append(normalized, n)
	}
	return normalized
}

// commit inserts NEW candidates one by one and records duplicates for
// review. A ledger rejection moves the candidate to the error count and
// the batch continues; each insert is independently valid.
//
// Candidates whose ledger dedup pass never completed are not committed:
// a near-duplicate has a different fingerprint, so the store's
// uniqueness backstop cannot catch it, and importing unchecked is the
// false negative the dedup pass exists to prevent.
func (c *Coordinator) commit(ctx context.Context, decisions []dedup.Decision, source models.SourceKind, result *models.ImportResult) {
	for _, d := range decisions {
		if d.Status == dedup.StatusNew && !d.Resolved {
			result.AddRejection(models.Rejection{
				Candidate: *d.Normalized.Candidate,
				Reason:    models.ReasonDatabaseError,
				Detail:    "ledger lookup failed before the duplicate check; not imported",
			})
			continue
		}

		switch d.Status {
		case dedup.StatusExactDuplicate:
			result.AddRejection(models.Rejection{
				Candidate:       *d.Normalized.Candidate,
				Reason:          models.ReasonExactDuplicate,
				MatchedLedgerID: d.MatchedLedgerID,
				Detail:          duplicateDetail(d),
			})

		case dedup.StatusNearDuplicate:
			// Never auto-merged: near-duplicates may be legitimate
			// distinct transactions, so they go to review instead.
			result.AddRejection(models.Rejection{
				Candidate:       *d.Normalized.Candidate,
				Reason:          models.ReasonNearDuplicate,
				MatchedLedgerID: d.MatchedLedgerID,
				Detail:          duplicateDetail(d),
			})

		case dedup.StatusNew:
			if _, err := c.writer.Insert(ctx, d.Normalized, d.Fingerprint, source); err != nil {
				result.AddRejection(models.Rejection{
					Candidate: *d.Normalized.Candidate,
					Reason:    models.ReasonDatabaseError,
					Detail:    err.Error(),
				})
				continue
			}
			result.Imported++
		}
	}
}

func duplicateDetail(d dedup.Decision) string {
	if d.MatchedLedgerID != "" {
		return "matches ledger transaction " + d.MatchedLedgerID
	}
	return "matches earlier candidate in this batch"
}
