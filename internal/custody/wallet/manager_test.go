package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/custody/keyvault"
	"github.com/vietddude/sweeper/internal/infra/storage/memory"
)

type mockFunder struct {
	TransferFunc func(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount, gasPrice *big.Int) (string, error)
	calls        []common.Address
}

func (m *mockFunder) Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount, gasPrice *big.Int) (string, error) {
	m.calls = append(m.calls, to)
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, key, to, amount, gasPrice)
	}
	return "0xfeed", nil
}

type mockPublisher struct {
	created []domain.WalletView
}

func (m *mockPublisher) WalletCreated(ctx context.Context, w domain.WalletView) error {
	m.created = append(m.created, w)
	return nil
}
func (m *mockPublisher) SweepCompleted(context.Context, domain.SweepReport) error { return nil }
func (m *mockPublisher) Close()                                                   {}

func newVault(t *testing.T, secret string) *keyvault.Vault {
	t.Helper()
	v, err := keyvault.New(secret)
	require.NoError(t, err)
	return v
}

func funding(t *testing.T, f Funder) Funding {
	master, err := crypto.GenerateKey()
	require.NoError(t, err)
	return Funding{Funder: f, MasterKey: master, Amount: big.NewInt(1_000_000_000_000_000_000)}
}

func TestCreateCustodialWallet(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	vault := newVault(t, "secret")
	funder := &mockFunder{}
	pub := &mockPublisher{}

	m := NewManager(ledger, vault, funding(t, funder), pub)
	view, err := m.CreateCustodialWallet(ctx)
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(view.Address))
	assert.False(t, view.CreatedAt.IsZero())

	rec, err := ledger.Find(ctx, view.Address)
	require.NoError(t, err)
	require.NotNil(t, rec)

	plaintext, err := vault.Decrypt(rec.EncryptedKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plaintext, "0x"))

	key, err := crypto.HexToECDSA(strings.TrimPrefix(plaintext, "0x"))
	require.NoError(t, err)
	assert.Equal(t, view.Address, crypto.PubkeyToAddress(key.PublicKey).Hex())

	require.Len(t, funder.calls, 1)
	assert.Equal(t, view.Address, funder.calls[0].Hex())
	require.Len(t, pub.created, 1)
	assert.Equal(t, view, pub.created[0])
}

func TestCreateCustodialWallet_FundingFailureKeepsWallet(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	funder := &mockFunder{TransferFunc: func(context.Context, *ecdsa.PrivateKey, common.Address, *big.Int, *big.Int) (string, error) {
		return "", errors.New("insufficient funds")
	}}

	m := NewManager(ledger, newVault(t, "secret"), funding(t, funder), nil)
	view, err := m.CreateCustodialWallet(ctx)
	require.NoError(t, err)

	rec, err := ledger.Find(ctx, view.Address)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestCreateCustodialWallet_FundingDisabled(t *testing.T) {
	funder := &mockFunder{}
	f := funding(t, funder)
	f.Amount = big.NewInt(0)

	m := NewManager(memory.NewLedger(), newVault(t, "secret"), f, nil)
	_, err := m.CreateCustodialWallet(context.Background())
	require.NoError(t, err)
	assert.Empty(t, funder.calls)
}

func TestListAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.NewLedger(), newVault(t, "secret"), Funding{}, nil)

	a, err := m.CreateCustodialWallet(ctx)
	require.NoError(t, err)
	b, err := m.CreateCustodialWallet(ctx)
	require.NoError(t, err)

	views, err := m.ListWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.WalletView{a, b}, views)

	got, err := m.FindWallet(ctx, strings.ToLower(b.Address))
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = m.FindWallet(ctx, "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, err = m.FindWallet(ctx, "not-an-address")
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestRekey(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	oldVault := newVault(t, "old")
	m := NewManager(ledger, oldVault, Funding{}, nil)

	for i := 0; i < 3; i++ {
		_, err := m.CreateCustodialWallet(ctx)
		require.NoError(t, err)
	}
	before, _ := ledger.Load(ctx)

	newV := newVault(t, "new")
	n, err := m.Rekey(ctx, oldVault.RotateTo(newV), newV)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	after, _ := ledger.Load(ctx)
	require.Len(t, after, 3)
	for i := range after {
		assert.Equal(t, before[i].Address, after[i].Address)
		oldPlain, err := oldVault.Decrypt(before[i].EncryptedKey)
		require.NoError(t, err)
		newPlain, err := keyvault.Decrypt(after[i].EncryptedKey, "new")
		require.NoError(t, err)
		assert.Equal(t, oldPlain, newPlain)
	}
}

func TestRekey_AbortsOnUndecryptableRecord(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger(domain.WalletRecord{Address: "0x0000000000000000000000000000000000000001", EncryptedKey: "bogus"})
	oldVault, newV := newVault(t, "old"), newVault(t, "new")
	m := NewManager(ledger, oldVault, Funding{}, nil)

	_, err := m.Rekey(ctx, oldVault.RotateTo(newV), newV)
	require.ErrorIs(t, err, domain.ErrDecryption)

	records, _ := ledger.Load(ctx)
	assert.Equal(t, "bogus", records[0].EncryptedKey)
}
