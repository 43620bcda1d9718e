package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the boundary between the sweeper and an EVM node.
// Implementations return raw node errors; retry policy lives with the callers.
type Client interface {
	// ChainID returns the EIP-155 chain id reported by the node
	ChainID(ctx context.Context) (*big.Int, error)

	// NativeBalance returns the latest native balance of account in wei
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)

	// TokenBalance calls balanceOf(owner) on an ERC-20 contract
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// TokenDecimals calls decimals() on an ERC-20 contract
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)

	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction submits a signed transaction
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// WaitMined blocks until tx has a receipt or ctx is done
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	Close()
}
