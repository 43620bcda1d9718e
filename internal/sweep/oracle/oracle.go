// Package oracle reads balances and gas prices through the retry policy.
package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/sweeper/internal/infra/chain"
	"github.com/vietddude/sweeper/internal/infra/rpc"
)

// Oracle is the read side of the chain used by a sweep.
type Oracle struct {
	client chain.Client
	retry  rpc.RetryConfig
}

func New(client chain.Client, retry rpc.RetryConfig) *Oracle {
	return &Oracle{client: client, retry: retry}
}

func (o *Oracle) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return rpc.Do(ctx, o.retry, "native_balance", func(ctx context.Context) (*big.Int, error) {
		return o.client.NativeBalance(ctx, account)
	})
}

func (o *Oracle) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return rpc.Do(ctx, o.retry, "token_balance", func(ctx context.Context) (*big.Int, error) {
		return o.client.TokenBalance(ctx, token, owner)
	})
}

func (o *Oracle) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	return rpc.Do(ctx, o.retry, "token_decimals", func(ctx context.Context) (uint8, error) {
		return o.client.TokenDecimals(ctx, token)
	})
}

func (o *Oracle) GasPrice(ctx context.Context) (*big.Int, error) {
	return rpc.Do(ctx, o.retry, "gas_price", func(ctx context.Context) (*big.Int, error) {
		return o.client.SuggestGasPrice(ctx)
	})
}

// Balances reads the native and token balance of one wallet.
func (o *Oracle) Balances(
	ctx context.Context,
	token, account common.Address,
) (native, tokens *big.Int, err error) {
	native, err = o.NativeBalance(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	tokens, err = o.TokenBalance(ctx, token, account)
	if err != nil {
		return nil, nil, err
	}
	return native, tokens, nil
}
