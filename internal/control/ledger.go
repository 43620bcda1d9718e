package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/sweeper/internal/core/config"
	"github.com/vietddude/sweeper/internal/infra/storage"
	"github.com/vietddude/sweeper/internal/infra/storage/jsonfile"
	"github.com/vietddude/sweeper/internal/infra/storage/memory"
	"github.com/vietddude/sweeper/internal/infra/storage/postgres"
)

// OpenLedger builds the wallet ledger selected by cfg. The returned DB is
// non-nil only for the postgres backend; closing the ledger closes it.
func OpenLedger(ctx context.Context, cfg *config.AppConfig) (storage.WalletLedger, *postgres.DB, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerJSONFile:
		slog.Info("Using JSON file ledger", "path", cfg.Ledger.Path)
		return jsonfile.New(cfg.Ledger.Path), nil, nil

	case config.LedgerMemory:
		slog.Warn("Using memory ledger, wallets are lost on exit")
		return memory.NewLedger(), nil, nil

	case config.LedgerPostgres:
		db, err := postgres.NewDB(ctx, cfg.Ledger.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		slog.Info("Using PostgreSQL ledger")
		return postgres.NewWalletRepo(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}
