// Package ledger defines the pipeline's boundary to the persisted
// transaction store and provides a YAML-file implementation used by the
// CLI and by tests. The real CRUD engine is an external collaborator;
// the pipeline only ever looks up nearby transactions and inserts new
// ones.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fjacquet/budget-import/internal/models"
)

// ErrDuplicate is returned by Insert when a transaction with the same
// fingerprint already exists. Two concurrent imports may both resolve a
// candidate as new; the insert path is the backstop.
var ErrDuplicate = errors.New("transaction with identical fingerprint already exists")

// Lookup is the read side of the ledger boundary.
type Lookup interface {
	// LookupNear returns persisted transactions whose date lies within
	// windowDays of date and whose amount matches to the cent.
	LookupNear(ctx context.Context, date time.Time, amount decimal.Decimal, windowDays int) ([]models.LedgerTransaction, error)
}

// Writer is the insert-only write side of the ledger boundary.
type Writer interface {
	// Insert persists one accepted transaction. Each insert is
	// independently valid; no cross-record transaction boundary exists.
	Insert(ctx context.Context, n models.Normalized, fp models.Fingerprint, source models.SourceKind) (models.LedgerTransaction, error)
}
