// Package txlog is the append-only transaction log. Records are stored in
// append order in a single document and read back newest-first.
package txlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/store"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config sizes the reference filter.
type Config struct {
	// ExpectedEntries is the number of references the filter is sized for.
	ExpectedEntries uint `yaml:"expected_entries"`
	// FalsePositiveRate is the target rate at ExpectedEntries.
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// DefaultConfig sizes the filter for 100k references at 1%.
func DefaultConfig() Config {
	return Config{
		ExpectedEntries:   100_000,
		FalsePositiveRate: 0.01,
	}
}

// Log is safe for concurrent use. Other processes may append to the same
// document; their records are folded into the reference filter on the next
// read.
type Log struct {
	mu sync.Mutex

	layer store.Layer
	key   string

	// refs holds the references of the first indexed stored records. A
	// negative answer is definite; a positive one is confirmed against the
	// stored records.
	refs    *bloom.BloomFilter
	indexed int

	logger *logging.Logger
}

// New creates a Log persisting to layer under keys.Build("transactions").
func New(layer store.Layer, keys *store.KeyPattern, config Config, logger *logging.Logger) *Log {
	defaults := DefaultConfig()
	if config.ExpectedEntries == 0 {
		config.ExpectedEntries = defaults.ExpectedEntries
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = defaults.FalsePositiveRate
	}
	return &Log{
		layer:  layer,
		key:    keys.MustBuild("transactions"),
		refs:   bloom.NewWithEstimates(config.ExpectedEntries, config.FalsePositiveRate),
		logger: logging.OrGlobal(logger, "txlog"),
	}
}

// load reads all records and adds references stored since the last read to
// the filter. The log only grows at its tail. l.mu must be held.
func (l *Log) load(ctx context.Context) ([]ledger.Transaction, error) {
	var records []ledger.Transaction
	if _, err := store.GetJSON(ctx, l.layer, l.key, &records); err != nil {
		return nil, fmt.Errorf("txlog: load: %w", err)
	}
	if len(records) > l.indexed {
		for _, tx := range records[l.indexed:] {
			l.refs.AddString(tx.Reference)
		}
		l.indexed = len(records)
	}
	return records, nil
}

func containsReference(records []ledger.Transaction, ref string) bool {
	for _, tx := range records {
		if tx.Reference == ref {
			return true
		}
	}
	return false
}

// Append adds tx to the end of the log. Only successful transactions are
// recorded; a reference already in the log fails with
// ledger.ErrDuplicateReference.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	if tx.Status != ledger.StatusSuccess {
		return fmt.Errorf("txlog: refusing %s transaction %s", tx.Status, tx.ID)
	}
	if tx.ID == "" || tx.Reference == "" {
		return fmt.Errorf("txlog: transaction id and reference are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return err
	}
	if l.refs.TestString(tx.Reference) && containsReference(records, tx.Reference) {
		return fmt.Errorf("txlog: %s: %w", tx.Reference, ledger.ErrDuplicateReference)
	}

	if err := store.SetJSON(ctx, l.layer, l.key, append(records, tx)); err != nil {
		return fmt.Errorf("txlog: append: %w", err)
	}
	l.refs.AddString(tx.Reference)
	l.indexed = len(records) + 1

	l.logger.Debug("Transaction appended",
		logging.Reference(tx.Reference),
		logging.AccountID(tx.UserID),
		logging.Kind(string(tx.Kind)),
		zap.Int("entries", len(records)+1))

	return nil
}

// HasReference reports whether ref is already in the log.
func (l *Log) HasReference(ctx context.Context, ref string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	if !l.refs.TestString(ref) {
		return false, nil
	}
	return containsReference(records, ref), nil
}

// List returns userID's transactions, newest first. An empty userID lists
// every account.
func (l *Log) List(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Transaction, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if userID == "" || records[i].UserID == userID {
			out = append(out, records[i])
		}
	}
	return out, nil
}

// Get returns the transaction with id, or ledger.ErrNotFound.
func (l *Log) Get(ctx context.Context, id string) (ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	for _, tx := range records {
		if tx.ID == id {
			return tx, nil
		}
	}
	return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
}

// DebitedSince sums the amount plus fee of userID's debits created at or
// after since.
func (l *Log) DebitedSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, tx := range records {
		if tx.UserID != userID || tx.Direction != ledger.Debit || tx.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(tx.Net.Abs())
	}
	return total, nil
}
