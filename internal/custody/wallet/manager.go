// Package wallet creates and lists custodial wallets.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/core/units"
	"github.com/vietddude/sweeper/internal/infra/events"
	"github.com/vietddude/sweeper/internal/infra/storage"
	"github.com/vietddude/sweeper/internal/sweep/metrics"
)

// Cipher encrypts private keys for storage.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Rotator re-encrypts a stored token under a new secret.
type Rotator interface {
	ReEncrypt(token string) (string, error)
}

// Funder moves native currency from the master wallet.
type Funder interface {
	Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount, gasPrice *big.Int) (string, error)
}

// Funding describes the initial top-up of new wallets.
// A nil Funder or zero Amount disables funding.
type Funding struct {
	Funder    Funder
	MasterKey *ecdsa.PrivateKey
	Amount    *big.Int
	GasPrice  *big.Int
}

func (f Funding) enabled() bool {
	return f.Funder != nil && f.MasterKey != nil && f.Amount != nil && f.Amount.Sign() > 0
}

type Manager struct {
	ledger  storage.WalletLedger
	cipher  Cipher
	funding Funding
	events  events.Publisher
	log     *slog.Logger
}

func NewManager(ledger storage.WalletLedger, cipher Cipher, funding Funding, pub events.Publisher) *Manager {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Manager{
		ledger:  ledger,
		cipher:  cipher,
		funding: funding,
		events:  pub,
		log:     slog.Default().With("component", "wallets"),
	}
}

// CreateCustodialWallet generates a key, persists it encrypted and funds the
// new address. A funding failure is logged and does not undo the wallet.
func (m *Manager) CreateCustodialWallet(ctx context.Context) (domain.WalletView, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return domain.WalletView{}, fmt.Errorf("generate key: %w", err)
	}
	raw := crypto.FromECDSA(key)
	plaintext := hexutil.Encode(raw)
	clear(raw)

	token, err := m.cipher.Encrypt(plaintext)
	if err != nil {
		return domain.WalletView{}, fmt.Errorf("encrypt key: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	record := domain.WalletRecord{
		Address:      address.Hex(),
		EncryptedKey: token,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.ledger.Append(ctx, record); err != nil {
		return domain.WalletView{}, fmt.Errorf("store wallet: %w", err)
	}
	metrics.WalletsCreatedTotal.Inc()
	m.log.Info("custodial wallet created", "address", record.Address)

	if m.funding.enabled() {
		m.fund(ctx, address)
	}

	view := record.View()
	if err := m.events.WalletCreated(ctx, view); err != nil {
		m.log.Warn("failed to publish wallet event", "address", view.Address, "error", err)
	}
	return view, nil
}

func (m *Manager) fund(ctx context.Context, to common.Address) {
	hash, err := m.funding.Funder.Transfer(ctx, m.funding.MasterKey, to, m.funding.Amount, m.funding.GasPrice)
	if err != nil {
		metrics.WalletFundingErrorsTotal.Inc()
		m.log.Error("funding new wallet failed", "address", to.Hex(), "tx", hash, "error", err)
		return
	}
	m.log.Info("new wallet funded", "address", to.Hex(), "amount", units.Ether(m.funding.Amount), "tx", hash)
}

func (m *Manager) ListWallets(ctx context.Context) ([]domain.WalletView, error) {
	records, err := m.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.WalletsTotal.Set(float64(len(records)))

	views := make([]domain.WalletView, len(records))
	for i, r := range records {
		views[i] = r.View()
	}
	return views, nil
}

func (m *Manager) FindWallet(ctx context.Context, address string) (domain.WalletView, error) {
	if !common.IsHexAddress(address) {
		return domain.WalletView{}, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, address)
	}
	rec, err := m.ledger.Find(ctx, address)
	if err != nil {
		return domain.WalletView{}, err
	}
	if rec == nil {
		return domain.WalletView{}, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, address)
	}
	return rec.View(), nil
}

// Rekey re-encrypts every stored key through rot and switches the manager to
// next. The ledger is only rewritten when every record decrypts.
func (m *Manager) Rekey(ctx context.Context, rot Rotator, next Cipher) (int, error) {
	var n int
	err := m.ledger.Update(ctx, func(records []domain.WalletRecord) ([]domain.WalletRecord, error) {
		out := make([]domain.WalletRecord, len(records))
		for i, r := range records {
			token, err := rot.ReEncrypt(r.EncryptedKey)
			if err != nil {
				return nil, fmt.Errorf("wallet %s: %w", r.Address, err)
			}
			r.EncryptedKey = token
			out[i] = r
		}
		n = len(out)
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	m.cipher = next
	m.log.Info("wallet keys re-encrypted", "count", n)
	return n, nil
}
