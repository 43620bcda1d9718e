// Package executor builds, signs, submits and confirms sweep transfers.
package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/infra/chain"
	"github.com/vietddude/sweeper/internal/infra/chain/evm"
	"github.com/vietddude/sweeper/internal/infra/rpc"
)

// Config describes where swept funds go and how transfers are priced.
type Config struct {
	HotWallet      common.Address
	Token          common.Address
	ChainID        *big.Int
	GasLimit       uint64
	TokenGasLimit  uint64
	ConfirmTimeout time.Duration
	Retry          rpc.RetryConfig
}

type Executor struct {
	client chain.Client
	cfg    Config
	signer types.Signer
	log    *slog.Logger
}

func New(client chain.Client, cfg Config) *Executor {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	return &Executor{
		client: client,
		cfg:    cfg,
		signer: types.NewEIP155Signer(cfg.ChainID),
		log:    slog.Default().With("component", "executor"),
	}
}

// Execute carries out one transfer plan signed with key. Every failure is
// reported in the returned outcome.
func (e *Executor) Execute(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	plan domain.AssetTransferPlan,
	gasPrice *big.Int,
) domain.SweepOutcome {
	out := domain.SweepOutcome{
		WalletAddress: plan.WalletAddress,
		Asset:         plan.Asset,
		Amount:        plan.Amount,
	}
	if plan.IsZero() {
		out.Status = domain.SweepStatusSkipped
		out.Reason = domain.ReasonInsufficientBalance
		return out
	}

	t, err := e.transferFor(plan)
	if err != nil {
		out.Status = domain.SweepStatusFailed
		out.Reason = fmt.Sprintf("build transaction: %v", err)
		return out
	}

	res := e.send(ctx, key, t, gasPrice)
	out.TxHash = res.hash
	if res.err != nil {
		out.Status = domain.SweepStatusFailed
		out.Reason = res.reason
		return out
	}
	out.Status = domain.SweepStatusSwept
	return out
}

// Transfer sends amount of native currency from key to any address and waits
// for the receipt. A nil gasPrice is estimated by the node.
func (e *Executor) Transfer(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	to common.Address,
	amount, gasPrice *big.Int,
) (string, error) {
	if gasPrice == nil || gasPrice.Sign() <= 0 {
		price, err := rpc.Do(ctx, e.cfg.Retry, "gas_price", e.client.SuggestGasPrice)
		if err != nil {
			return "", fmt.Errorf("estimate gas price: %w", err)
		}
		gasPrice = price
	}

	res := e.send(ctx, key, transfer{to: to, value: amount, gas: e.cfg.GasLimit}, gasPrice)
	if res.err != nil {
		return res.hash, fmt.Errorf("%s: %w", res.reason, res.err)
	}
	return res.hash, nil
}

type transfer struct {
	to    common.Address
	value *big.Int
	data  []byte
	gas   uint64
}

type sendResult struct {
	hash   string
	reason string
	err    error
}

func (e *Executor) transferFor(plan domain.AssetTransferPlan) (transfer, error) {
	switch plan.Asset {
	case domain.AssetNative:
		return transfer{to: e.cfg.HotWallet, value: plan.Amount, gas: e.cfg.GasLimit}, nil
	case domain.AssetToken:
		data, err := evm.PackTransfer(e.cfg.HotWallet, plan.Amount)
		if err != nil {
			return transfer{}, err
		}
		return transfer{to: e.cfg.Token, value: new(big.Int), data: data, gas: e.cfg.TokenGasLimit}, nil
	default:
		return transfer{}, fmt.Errorf("unknown asset %q", plan.Asset)
	}
}

// send signs t with the pending nonce, submits it and waits for one receipt.
func (e *Executor) send(ctx context.Context, key *ecdsa.PrivateKey, t transfer, gasPrice *big.Int) sendResult {
	from := crypto.PubkeyToAddress(key.PublicKey)
	log := e.log.With("from", from.Hex(), "to", t.to.Hex())

	if gasPrice == nil || gasPrice.Sign() <= 0 {
		return sendResult{reason: "build transaction: gas price must be positive", err: domain.ErrTransactionFailed}
	}

	nonce, err := rpc.Do(ctx, e.cfg.Retry, "pending_nonce", func(ctx context.Context) (uint64, error) {
		return e.client.PendingNonce(ctx, from)
	})
	if err != nil {
		return sendResult{reason: failureReason("nonce read failed", err), err: err}
	}

	signed, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &t.to,
		Value:    new(big.Int).Set(t.value),
		Gas:      t.gas,
		GasPrice: gasPrice,
		Data:     t.data,
	}), e.signer, key)
	if err != nil {
		return sendResult{reason: failureReason("sign transaction", err), err: err}
	}
	res := sendResult{hash: signed.Hash().Hex()}

	if _, err := rpc.Do(ctx, e.cfg.Retry, "send_transaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.submit(ctx, signed)
	}); err != nil {
		log.Warn("transaction rejected", "tx", res.hash, "error", err)
		res.reason, res.err = rejectionReason(err), err
		return res
	}
	log.Debug("transaction submitted", "tx", res.hash, "nonce", nonce, "value", t.value)

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	receipt, err := e.client.WaitMined(waitCtx, signed)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			res.reason = domain.ReasonCancelled
		case errors.Is(err, context.DeadlineExceeded):
			res.reason = domain.ReasonConfirmTimeout
		default:
			res.reason = fmt.Sprintf("%s: %v", domain.ReasonConfirmFailed, err)
		}
		log.Warn("transaction not confirmed", "tx", res.hash, "error", err)
		res.err = err
		return res
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("transaction reverted", "tx", res.hash, "block", receipt.BlockNumber)
		res.reason, res.err = domain.ReasonReverted, domain.ErrTransactionFailed
		return res
	}

	log.Info("transaction confirmed", "tx", res.hash, "value", t.value, "block", receipt.BlockNumber)
	return res
}

// submit sends tx once. A node that already holds the tx counts as success,
// and known rejections are marked fatal so they are not resubmitted.
func (e *Executor) submit(ctx context.Context, tx *types.Transaction) error {
	err := e.client.SendTransaction(ctx, tx)
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction") {
		return nil
	}
	if rejectionCause(msg) != "" {
		return fmt.Errorf("%w: %w: %w", domain.ErrTransactionFailed, domain.ErrRPCFatal, err)
	}
	return err
}

func rejectionCause(msg string) string {
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return domain.ReasonInsufficientFunds
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"):
		return domain.ReasonNonceConflict
	case strings.Contains(msg, "underpriced"):
		return domain.ReasonUnderpriced
	case strings.Contains(msg, "rejected"),
		strings.Contains(msg, "intrinsic gas too low"),
		strings.Contains(msg, "exceeds block gas limit"),
		strings.Contains(msg, "invalid sender"):
		return "rejected"
	}
	return ""
}

func rejectionReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return domain.ReasonCancelled
	}
	if cause := rejectionCause(strings.ToLower(err.Error())); cause != "" {
		return cause
	}
	return fmt.Sprintf("submission failed: %v", err)
}

func failureReason(what string, err error) string {
	if errors.Is(err, context.Canceled) {
		return domain.ReasonCancelled
	}
	return fmt.Sprintf("%s: %v", what, err)
}
