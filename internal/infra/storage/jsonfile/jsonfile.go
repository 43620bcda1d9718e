// Package jsonfile stores the wallet ledger as a single JSON document:
//
//	{"wallets":[{"address":"0x..","encryptedKey":"iv:ct","createdAt":".."}]}
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/storage"
	"github.com/vietddude/sweeper/internal/sweep/metrics"
)

var _ storage.WalletLedger = (*Ledger)(nil)

type document struct {
	Wallets []domain.WalletRecord `json:"wallets"`
}

// Ledger is a file-backed WalletLedger. All access goes through one mutex.
type Ledger struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

func New(path string) *Ledger {
	return &Ledger{
		path: path,
		log:  slog.Default().With("component", "ledger", "path", path),
	}
}

func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Load(ctx context.Context) ([]domain.WalletRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Ledger) Save(ctx context.Context, records []domain.WalletRecord) error {
	if err := storage.CheckUnique(records); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(records)
}

func (l *Ledger) Append(ctx context.Context, record domain.WalletRecord) error {
	return l.Update(ctx, func(records []domain.WalletRecord) ([]domain.WalletRecord, error) {
		if domain.IndexOfAddress(records, record.Address) >= 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateWallet, record.Address)
		}
		return append(records, record), nil
	})
}

func (l *Ledger) Find(ctx context.Context, address string) (*domain.WalletRecord, error) {
	records, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := domain.IndexOfAddress(records, address); i >= 0 {
		return &records[i], nil
	}
	return nil, nil
}

func (l *Ledger) Update(ctx context.Context, fn storage.UpdateFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := l.read()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := storage.CheckUnique(next); err != nil {
		return err
	}
	return l.write(next)
}

func (l *Ledger) Close() error { return nil }

// read must be called with mu held.
func (l *Ledger) read() ([]domain.WalletRecord, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.WalletRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return []domain.WalletRecord{}, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		metrics.LedgerCorruptionsTotal.Inc()
		l.log.Warn("ledger unreadable, treating as empty",
			"error", fmt.Errorf("%w: %w", domain.ErrLedgerCorruption, err))
		return []domain.WalletRecord{}, nil
	}
	if doc.Wallets == nil {
		doc.Wallets = []domain.WalletRecord{}
	}
	return doc.Wallets, nil
}

// write replaces the ledger file via a synced temp file and rename.
// It must be called with mu held.
func (l *Ledger) write(records []domain.WalletRecord) error {
	if records == nil {
		records = []domain.WalletRecord{}
	}
	data, err := json.MarshalIndent(document{Wallets: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	l.preserveCorrupt()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	metrics.WalletsTotal.Set(float64(len(records)))
	return nil
}

// preserveCorrupt copies an unparsable ledger aside before it is overwritten.
func (l *Ledger) preserveCorrupt() {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	var doc document
	if json.Unmarshal(raw, &doc) == nil {
		return
	}

	backup := fmt.Sprintf("%s.corrupt-%d", l.path, time.Now().UnixNano())
	if err := os.WriteFile(backup, raw, 0o600); err != nil {
		l.log.Warn("failed to preserve corrupt ledger", "error", err)
		return
	}
	l.log.Warn("corrupt ledger preserved", "backup", backup)
}
