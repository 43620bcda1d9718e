package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/storage"
)

var _ storage.WalletLedger = (*Ledger)(nil)

// Ledger is an in-process WalletLedger. Nothing survives a restart.
type Ledger struct {
	records []domain.WalletRecord
	mu      sync.RWMutex
}

func NewLedger(records ...domain.WalletRecord) *Ledger {
	return &Ledger{records: slices.Clone(records)}
}

func (l *Ledger) Load(ctx context.Context) ([]domain.WalletRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := slices.Clone(l.records)
	if out == nil {
		out = []domain.WalletRecord{}
	}
	return out, nil
}

func (l *Ledger) Save(ctx context.Context, records []domain.WalletRecord) error {
	if err := storage.CheckUnique(records); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = slices.Clone(records)
	return nil
}

func (l *Ledger) Append(ctx context.Context, record domain.WalletRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if domain.IndexOfAddress(l.records, record.Address) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateWallet, record.Address)
	}
	l.records = append(l.records, record)
	return nil
}

func (l *Ledger) Find(ctx context.Context, address string) (*domain.WalletRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := domain.IndexOfAddress(l.records, address); i >= 0 {
		r := l.records[i]
		return &r, nil
	}
	return nil, nil
}

func (l *Ledger) Update(ctx context.Context, fn storage.UpdateFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := fn(slices.Clone(l.records))
	if err != nil {
		return err
	}
	if err := storage.CheckUnique(next); err != nil {
		return err
	}
	l.records = slices.Clone(next)
	return nil
}

func (l *Ledger) Close() error { return nil }
