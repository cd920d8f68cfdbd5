package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/models"
)

// Store is a YAML-file ledger implementing Lookup and Writer. It keeps
// the whole ledger in memory, guarded by a mutex, and rewrites the file
// on every insert. Suitable for personal-finance sized data; a database
// backed implementation satisfies the same interfaces.
type Store struct {
	path string

	mu           sync.Mutex
	transactions []models.LedgerTransaction
	byFinger     map[models.Fingerprint]int
}

type storeFile struct {
	Transactions []models.LedgerTransaction `yaml:"transactions"`
}

// OpenStore loads (or creates) the YAML ledger at path.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		byFinger: make(map[models.Fingerprint]int),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file %s: %w", path, err)
	}

	var file storeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file %s: %w", path, err)
	}

	s.transactions = file.Transactions
	for i, txn := range s.transactions {
		s.byFinger[txn.Fingerprint] = i
	}
	return s, nil
}

// LookupNear returns transactions within windowDays of date whose amount
// matches to the cent.
func (s *Store) LookupNear(ctx context.Context, date time.Time, amount decimal.Decimal, windowDays int) ([]models.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lower := date.AddDate(0, 0, -windowDays)
	upper := date.AddDate(0, 0, windowDays)

	var matches []models.LedgerTransaction
	for _, txn := range s.transactions {
		if txn.Date.Before(lower) || txn.Date.After(upper) {
			continue
		}
		if !txn.Amount.Equal(amount) {
			continue
		}
		matches = append(matches, txn)
	}
	return matches, nil
}

// Insert persists one transaction, enforcing fingerprint uniqueness
// under the store's mutex. The uniqueness re-check is what resolves the
// race between two concurrent imports that both saw a candidate as new.
func (s *Store) Insert(ctx context.Context, n models.Normalized, fp models.Fingerprint, source models.SourceKind) (models.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return models.LedgerTransaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, exists := s.byFinger[fp]; exists {
		return s.transactions[i], &importerror.DatabaseError{Op: "insert", Err: ErrDuplicate}
	}

	txn := models.LedgerTransaction{
		ID:           uuid.NewString(),
		Date:         n.Date,
		Amount:       n.Amount,
		Description:  n.Description,
		Type:         n.Type,
		Card:         n.Card,
		Category:     n.Category,
		Fingerprint:  fp,
		ImportSource: string(source),
		CreatedAt:    time.Now().UTC(),
	}

	s.transactions = append(s.transactions, txn)
	s.byFinger[fp] = len(s.transactions) - 1

	if err := s.save(); err != nil {
		// Roll back the in-memory insert so memory and file agree.
		s.transactions = s.transactions[:len(s.transactions)-1]
		delete(s.byFinger, fp)
		return models.LedgerTransaction{}, &importerror.DatabaseError{Op: "insert", Err: err}
	}

	return txn, nil
}

// Len returns the number of persisted transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// save rewrites the ledger file. Callers hold the mutex.
func (s *Store) save() error {
	data, err := yaml.Marshal(storeFile{Transactions: s.transactions})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}
