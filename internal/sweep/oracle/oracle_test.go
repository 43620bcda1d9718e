package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/chain/chaintest"
	"github.com/vietddude/sweeper/internal/infra/rpc"
)

var (
	token  = common.HexToAddress("0x40CB2CCcF80Ed2192b53FB09720405F6Fe349743")
	wallet = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func retryConfig() rpc.RetryConfig {
	return rpc.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond, CallTimeout: time.Second}
}

func TestOracle_Balances(t *testing.T) {
	fake := chaintest.NewFake()
	fake.SetNative(wallet, big.NewInt(5))
	fake.SetToken(wallet, big.NewInt(100))

	o := New(fake, retryConfig())
	native, tokens, err := o.Balances(context.Background(), token, wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(5), native.Int64())
	assert.Equal(t, int64(100), tokens.Int64())
}

func TestOracle_RetriesTimeouts(t *testing.T) {
	fake := chaintest.NewFake()
	calls := 0
	fake.NativeBalanceFunc = func(ctx context.Context, account common.Address) (*big.Int, error) {
		calls++
		if calls <= 2 {
			return nil, context.DeadlineExceeded
		}
		return big.NewInt(7), nil
	}

	got, err := New(fake, retryConfig()).NativeBalance(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Int64())
	assert.Equal(t, 3, calls)
}

func TestOracle_Exhausted(t *testing.T) {
	fake := chaintest.NewFake()
	calls := 0
	fake.TokenBalanceFunc = func(ctx context.Context, token, owner common.Address) (*big.Int, error) {
		calls++
		return nil, errors.New("503 Service Unavailable")
	}

	_, _, err := New(fake, retryConfig()).Balances(context.Background(), token, wallet)
	require.ErrorIs(t, err, domain.ErrRPCExhausted)
	assert.Equal(t, 3, calls)
}

func TestOracle_GasPriceAndDecimals(t *testing.T) {
	fake := chaintest.NewFake()
	fake.GasPriceValue = big.NewInt(42)
	fake.Decimals = 18

	o := New(fake, retryConfig())
	gp, err := o.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), gp.Int64())

	dec, err := o.TokenDecimals(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), dec)
}
