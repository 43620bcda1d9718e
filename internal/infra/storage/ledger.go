package storage

import (
	"context"
	"strings"

	"github.com/vietddude/sweeper/internal/core/domain"
)

// UpdateFunc receives the current records and returns the records to persist.
// Returning an error aborts the update and leaves the ledger unchanged.
type UpdateFunc func(records []domain.WalletRecord) ([]domain.WalletRecord, error)

// WalletLedger is the durable set of custodial wallet records.
// Implementations serialize every mutation.
type WalletLedger interface {
	// Load returns all records in insertion order. A missing or unreadable
	// store yields an empty slice.
	Load(ctx context.Context) ([]domain.WalletRecord, error)

	// Save replaces the whole ledger atomically
	Save(ctx context.Context, records []domain.WalletRecord) error

	// Append adds one record, failing with domain.ErrDuplicateWallet when the
	// address is already present
	Append(ctx context.Context, record domain.WalletRecord) error

	// Find returns the record for address, or nil when absent
	Find(ctx context.Context, address string) (*domain.WalletRecord, error)

	// Update runs a read-modify-write cycle under the writer lock
	Update(ctx context.Context, fn UpdateFunc) error

	Close() error
}

// CheckUnique returns domain.ErrDuplicateWallet if two records share an address.
func CheckUnique(records []domain.WalletRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		key := normalize(r.Address)
		if _, ok := seen[key]; ok {
			return domain.ErrDuplicateWallet
		}
		seen[key] = struct{}{}
	}
	return nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
