package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/storage"
)

const uniqueViolation = "23505"

var _ storage.WalletLedger = (*WalletRepo)(nil)

type walletRow struct {
	Address      string    `db:"address"`
	EncryptedKey string    `db:"encrypted_key"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r walletRow) record() domain.WalletRecord {
	return domain.WalletRecord{
		Address:      r.Address,
		EncryptedKey: r.EncryptedKey,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func toRows(records []domain.WalletRecord) []walletRow {
	rows := make([]walletRow, len(records))
	for i, rec := range records {
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		rows[i] = walletRow{Address: rec.Address, EncryptedKey: rec.EncryptedKey, CreatedAt: created}
	}
	return rows
}

// WalletRepo implements storage.WalletLedger using PostgreSQL.
// Ledger order is insertion order (the id column).
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new PostgreSQL wallet ledger.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

const (
	selectWallets = `SELECT address, encrypted_key, created_at FROM custodial_wallets ORDER BY id`
	insertWallet  = `INSERT INTO custodial_wallets (address, encrypted_key, created_at)
		VALUES (:address, :encrypted_key, :created_at)`
)

func (r *WalletRepo) Load(ctx context.Context) ([]domain.WalletRecord, error) {
	defer observe("wallets_load", time.Now())

	var rows []walletRow
	if err := r.db.SelectContext(ctx, &rows, selectWallets); err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	return toRecords(rows), nil
}

func (r *WalletRepo) Save(ctx context.Context, records []domain.WalletRecord) error {
	if err := storage.CheckUnique(records); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		return replaceAll(ctx, tx, records)
	})
}

func (r *WalletRepo) Append(ctx context.Context, record domain.WalletRecord) error {
	defer observe("wallets_append", time.Now())

	_, err := r.db.NamedExecContext(ctx, insertWallet, toRows([]domain.WalletRecord{record})[0])
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateWallet, record.Address)
	}
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

func (r *WalletRepo) Find(ctx context.Context, address string) (*domain.WalletRecord, error) {
	defer observe("wallets_find", time.Now())

	var row walletRow
	err := r.db.GetContext(ctx, &row,
		`SELECT address, encrypted_key, created_at FROM custodial_wallets WHERE lower(address) = lower($1)`,
		address,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

// Update locks the table for the duration of fn so concurrent writers queue up.
func (r *WalletRepo) Update(ctx context.Context, fn storage.UpdateFunc) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE custodial_wallets IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock wallets: %w", err)
		}

		var rows []walletRow
		if err := tx.SelectContext(ctx, &rows, selectWallets); err != nil {
			return fmt.Errorf("failed to load wallets: %w", err)
		}

		next, err := fn(toRecords(rows))
		if err != nil {
			return err
		}
		if err := storage.CheckUnique(next); err != nil {
			return err
		}
		return replaceAll(ctx, tx, next)
	})
}

func (r *WalletRepo) Close() error {
	return r.db.Close()
}

func (r *WalletRepo) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	defer observe("wallets_tx", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func replaceAll(ctx context.Context, tx *sqlx.Tx, records []domain.WalletRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM custodial_wallets`); err != nil {
		return fmt.Errorf("failed to clear wallets: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	_, err := tx.NamedExecContext(ctx, insertWallet, toRows(records))
	if isUniqueViolation(err) {
		return domain.ErrDuplicateWallet
	}
	if err != nil {
		return fmt.Errorf("failed to insert wallets: %w", err)
	}
	return nil
}

func toRecords(rows []walletRow) []domain.WalletRecord {
	records := make([]domain.WalletRecord, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return records
}

// isUniqueViolation recognises duplicate-key errors from both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
