package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/chain"
)

var _ chain.Client = (*Client)(nil)

// Client implements chain.Client on top of go-ethereum's ethclient.
type Client struct {
	eth *ethclient.Client
	log *slog.Logger
}

// Dial connects to the JSON-RPC endpoint at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(eth), nil
}

func NewClient(eth *ethclient.Client) *Client {
	return &Client{
		eth: eth,
		log: slog.Default().With("component", "evm"),
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, account, nil)
}

func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	result, err := c.call(ctx, token, data)
	if err != nil {
		return nil, err
	}

	balance, err := UnpackBalanceOf(result)
	if err != nil {
		// An empty result means there is no contract at token; retrying won't help.
		return nil, fmt.Errorf("balanceOf %s: %w: %w", token.Hex(), domain.ErrRPCFatal, err)
	}
	return balance, nil
}

func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := PackDecimals()
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}

	result, err := c.call(ctx, token, data)
	if err != nil {
		return 0, err
	}

	decimals, err := UnpackDecimals(result)
	if err != nil {
		return 0, fmt.Errorf("decimals %s: %w: %w", token.Hex(), domain.ErrRPCFatal, err)
	}
	return decimals, nil
}

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	return c.eth.CallContract(ctx, msg, nil)
}

func (c *Client) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

// WaitMined polls for the receipt of tx until it is mined or ctx is done.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, err
	}
	c.log.Debug("transaction mined",
		"tx", tx.Hash().Hex(),
		"block", receipt.BlockNumber,
		"status", receipt.Status,
		"gas_used", receipt.GasUsed,
	)
	return receipt, nil
}

func (c *Client) Close() {
	c.eth.Close()
}
