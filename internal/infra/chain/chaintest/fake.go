// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vietddude/sweeper/internal/infra/chain"
)

var _ chain.Client = (*Fake)(nil)

// Fake implements chain.Client. Unset funcs fall back to the static fields.
// Sent transactions are recorded and, by default, mined successfully.
type Fake struct {
	ChainIDValue  *big.Int
	GasPriceValue *big.Int
	Native        map[common.Address]*big.Int
	Tokens        map[common.Address]*big.Int
	Decimals      uint8

	NativeBalanceFunc func(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalanceFunc  func(ctx context.Context, token, owner common.Address) (*big.Int, error)
	DecimalsFunc      func(ctx context.Context, token common.Address) (uint8, error)
	NonceFunc         func(ctx context.Context, account common.Address) (uint64, error)
	GasPriceFunc      func(ctx context.Context) (*big.Int, error)
	SendFunc          func(ctx context.Context, tx *types.Transaction) error
	WaitMinedFunc     func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	mu     sync.Mutex
	sent   []*types.Transaction
	nonces map[common.Address]uint64
}

func NewFake() *Fake {
	return &Fake{
		ChainIDValue:  big.NewInt(171717),
		GasPriceValue: big.NewInt(1_000_000_000),
		Native:        make(map[common.Address]*big.Int),
		Tokens:        make(map[common.Address]*big.Int),
		Decimals:      6,
		nonces:        make(map[common.Address]uint64),
	}
}

// Sent returns the transactions submitted so far.
func (f *Fake) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *Fake) SetNative(account common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Native[account] = wei
}

func (f *Fake) SetToken(owner common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens[owner] = amount
}

func (f *Fake) ChainID(ctx context.Context) (*big.Int, error) {
	return f.ChainIDValue, nil
}

func (f *Fake) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	if f.NativeBalanceFunc != nil {
		return f.NativeBalanceFunc(ctx, account)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Native[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (f *Fake) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if f.TokenBalanceFunc != nil {
		return f.TokenBalanceFunc(ctx, token, owner)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Tokens[owner]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (f *Fake) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if f.DecimalsFunc != nil {
		return f.DecimalsFunc(ctx, token)
	}
	return f.Decimals, nil
}

func (f *Fake) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	if f.NonceFunc != nil {
		return f.NonceFunc(ctx, account)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *Fake) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.GasPriceFunc != nil {
		return f.GasPriceFunc(ctx)
	}
	return f.GasPriceValue, nil
}

// SendTransaction records tx and bumps the sender's nonce.
func (f *Fake) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.SendFunc != nil {
		if err := f.SendFunc(ctx, tx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		f.nonces[from] = tx.Nonce() + 1
	}
	return nil
}

func (f *Fake) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if f.WaitMinedFunc != nil {
		return f.WaitMinedFunc(ctx, tx)
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(1),
		GasUsed:     tx.Gas(),
	}, nil
}

func (f *Fake) Close() {}
