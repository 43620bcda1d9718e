// Package orchestrator runs a full sweep over every wallet in the ledger.
package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/core/units"
	"github.com/vietddude/sweeper/internal/infra/storage"
	"github.com/vietddude/sweeper/internal/sweep/metrics"
	"github.com/vietddude/sweeper/internal/sweep/planner"
)

// KeyDecrypter turns a stored key token back into a hex private key.
type KeyDecrypter interface {
	Decrypt(token string) (string, error)
}

// BalanceOracle is the read side of the chain.
type BalanceOracle interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Executor submits one planned transfer.
type Executor interface {
	Execute(ctx context.Context, key *ecdsa.PrivateKey, plan domain.AssetTransferPlan, gasPrice *big.Int) domain.SweepOutcome
}

// Locker guards a run across processes. Acquire returns domain.ErrSweepInProgress
// when another holder owns the lock.
type Locker interface {
	Acquire(ctx context.Context, owner string) (release func(), err error)
}

// ReportHook is called after every completed run.
type ReportHook func(ctx context.Context, report domain.SweepReport)

// Config holds per-run sweep settings.
type Config struct {
	Token        common.Address
	NativeBuffer *big.Int
	// GasPrice of nil or zero means ask the node on every run.
	GasPrice      *big.Int
	GasLimit      uint64
	TokenGasLimit uint64
	Concurrency   int
	// RereadAfterToken refreshes the native balance after a broadcast token
	// transfer. Otherwise the token gas cost is deducted from the snapshot.
	RereadAfterToken bool
}

type Orchestrator struct {
	ledger storage.WalletLedger
	vault  KeyDecrypter
	oracle BalanceOracle
	exec   Executor
	cfg    Config
	locker Locker
	hooks  []ReportHook
	log    *slog.Logger

	running sync.Mutex
}

type Option func(*Orchestrator)

func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

func WithReportHook(h ReportHook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, h) }
}

func New(
	ledger storage.WalletLedger,
	vault KeyDecrypter,
	oracle BalanceOracle,
	exec Executor,
	cfg Config,
	opts ...Option,
) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	o := &Orchestrator{
		ledger: ledger,
		vault:  vault,
		oracle: oracle,
		exec:   exec,
		cfg:    cfg,
		log:    slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runParams is resolved once per run.
type runParams struct {
	plan        planner.Params
	decimals    int32
	hasDecimals bool
}

// Run sweeps every wallet once. Per-wallet failures are reported as outcomes;
// the returned error is reserved for run-level problems and cancellation.
func (o *Orchestrator) Run(ctx context.Context) (domain.SweepReport, error) {
	if !o.running.TryLock() {
		return domain.SweepReport{}, domain.ErrSweepInProgress
	}
	defer o.running.Unlock()

	report := domain.SweepReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Outcomes:  []domain.SweepOutcome{},
	}
	log := o.log.With("run_id", report.RunID)

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, report.RunID)
		if err != nil {
			return domain.SweepReport{}, err
		}
		defer release()
	}

	records, err := o.ledger.Load(ctx)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return domain.SweepReport{}, fmt.Errorf("load ledger: %w", err)
	}
	report.Wallets = len(records)
	log.Info("sweep started", "wallets", len(records), "concurrency", o.cfg.Concurrency)

	params, err := o.resolveParams(ctx)
	results := make([][]domain.SweepOutcome, len(records))

	if err != nil {
		log.Error("gas price unavailable, failing every wallet", "error", err)
		reason := fmt.Sprintf("gas price unavailable: %v", err)
		for i, rec := range records {
			results[i] = failAll(rec.Address, reason)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for i, rec := range records {
			g.Go(func() error {
				results[i] = o.sweepWallet(ctx, rec, params)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, outs := range results {
		report.Outcomes = append(report.Outcomes, outs...)
	}
	report.FinishedAt = time.Now().UTC()
	record(report)

	if err := ctx.Err(); err != nil {
		metrics.SweepRunsTotal.WithLabelValues("cancelled").Inc()
		log.Warn("sweep cancelled, ledger left untouched", "error", err)
		return report, err
	}

	// Re-read under the writer lock so wallets created during the run survive.
	if err := o.ledger.Update(ctx, func(current []domain.WalletRecord) ([]domain.WalletRecord, error) {
		return current, nil
	}); err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("save ledger: %w", err)
	}

	metrics.SweepRunsTotal.WithLabelValues("ok").Inc()
	log.Info("sweep finished",
		"swept", report.Count(domain.SweepStatusSwept),
		"skipped", report.Count(domain.SweepStatusSkipped),
		"failed", report.Count(domain.SweepStatusFailed),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	for _, h := range o.hooks {
		h(ctx, report)
	}
	return report, nil
}

func (o *Orchestrator) resolveParams(ctx context.Context) (runParams, error) {
	p := runParams{plan: planner.Params{
		NativeBuffer:  o.cfg.NativeBuffer,
		GasPrice:      o.cfg.GasPrice,
		GasLimit:      o.cfg.GasLimit,
		TokenGasLimit: o.cfg.TokenGasLimit,
	}}

	if p.plan.GasPrice == nil || p.plan.GasPrice.Sign() <= 0 {
		price, err := o.oracle.GasPrice(ctx)
		if err != nil {
			return p, err
		}
		p.plan.GasPrice = price
	}

	if dec, err := o.oracle.TokenDecimals(ctx, o.cfg.Token); err != nil {
		o.log.Warn("token decimals unavailable, reporting raw amounts", "error", err)
	} else {
		p.decimals, p.hasDecimals = int32(dec), true
	}
	return p, nil
}

func (o *Orchestrator) sweepWallet(ctx context.Context, rec domain.WalletRecord, p runParams) []domain.SweepOutcome {
	if ctx.Err() != nil {
		return failAll(rec.Address, domain.ReasonCancelled)
	}
	log := o.log.With("wallet", rec.Address)

	key, err := o.unlock(rec)
	if err != nil {
		log.Warn("wallet key unusable", "error", err)
		return failAll(rec.Address, domain.ReasonDecryptionFailed)
	}
	account := crypto.PubkeyToAddress(key.PublicKey)

	native, err := o.oracle.NativeBalance(ctx, account)
	if err != nil {
		return failAll(rec.Address, readFailure(err))
	}
	tokens, err := o.oracle.TokenBalance(ctx, o.cfg.Token, account)
	if err != nil {
		return failAll(rec.Address, readFailure(err))
	}
	log.Debug("balances read", "native", units.Ether(native), "token", tokens)

	decisions := planner.Plan(rec.Address, native, tokens, p.plan)
	tokenOut := o.apply(ctx, key, decisions[0], p)
	nativeDecision := decisions[1]

	if broadcast(tokenOut) {
		native, err = o.nativeAfterToken(ctx, account, native, tokenOut, p.plan)
		if err != nil {
			nativeOut := failed(rec.Address, domain.AssetNative, readFailure(err))
			return []domain.SweepOutcome{tokenOut, nativeOut}
		}
		nativeDecision = planner.PlanNative(rec.Address, native, p.plan)
	}

	nativeOut := o.apply(ctx, key, nativeDecision, p)
	return []domain.SweepOutcome{tokenOut, nativeOut}
}

// nativeAfterToken returns the native balance left once a broadcast token
// transfer has paid for its gas. Without a confirmed receipt the full token
// gas cost is held back.
func (o *Orchestrator) nativeAfterToken(
	ctx context.Context,
	account common.Address,
	snapshot *big.Int,
	tokenOut domain.SweepOutcome,
	params planner.Params,
) (*big.Int, error) {
	balance := snapshot
	if o.cfg.RereadAfterToken {
		fresh, err := o.oracle.NativeBalance(ctx, account)
		if err != nil {
			return nil, err
		}
		if !unconfirmed(tokenOut) {
			return fresh, nil
		}
		balance = fresh
	}

	left := new(big.Int).Sub(balance, params.TokenGasCost())
	if left.Sign() < 0 {
		left.SetInt64(0)
	}
	return left, nil
}

// broadcast reports whether the transfer reached the chain and may have spent gas.
func broadcast(out domain.SweepOutcome) bool {
	if out.TxHash == "" {
		return false
	}
	return out.Status == domain.SweepStatusSwept || out.Reason == domain.ReasonReverted || unconfirmed(out)
}

// unconfirmed reports a submitted transfer whose receipt was never seen.
func unconfirmed(out domain.SweepOutcome) bool {
	return out.Status == domain.SweepStatusFailed && out.TxHash != "" &&
		(out.Reason == domain.ReasonConfirmTimeout || strings.HasPrefix(out.Reason, domain.ReasonConfirmFailed))
}

// unlock decrypts the wallet key and checks it controls the recorded address.
func (o *Orchestrator) unlock(rec domain.WalletRecord) (*ecdsa.PrivateKey, error) {
	plaintext, err := o.vault.Decrypt(rec.EncryptedKey)
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(plaintext, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: not a private key", domain.ErrDecryption)
	}
	if derived := crypto.PubkeyToAddress(key.PublicKey); !domain.SameAddress(derived.Hex(), rec.Address) {
		return nil, fmt.Errorf("%w: key does not match address", domain.ErrDecryption)
	}
	return key, nil
}

func (o *Orchestrator) apply(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	d planner.Decision,
	p runParams,
) domain.SweepOutcome {
	var out domain.SweepOutcome
	switch {
	case d.Skipped():
		out = domain.SweepOutcome{
			WalletAddress: d.Plan.WalletAddress,
			Asset:         d.Plan.Asset,
			Status:        domain.SweepStatusSkipped,
			Reason:        d.Reason,
		}
	case ctx.Err() != nil:
		out = failed(d.Plan.WalletAddress, d.Plan.Asset, domain.ReasonCancelled)
	default:
		out = o.exec.Execute(ctx, key, d.Plan, p.plan.GasPrice)
	}

	if out.Amount != nil {
		switch {
		case out.Asset == domain.AssetNative:
			out.Display = units.Ether(out.Amount)
		case p.hasDecimals:
			out.Display = units.FromBaseUnits(out.Amount, p.decimals)
		}
	}
	return out
}

func readFailure(err error) string {
	if errors.Is(err, context.Canceled) {
		return domain.ReasonCancelled
	}
	return fmt.Sprintf("balance read failed: %v", err)
}

func failed(address string, asset domain.Asset, reason string) domain.SweepOutcome {
	return domain.SweepOutcome{
		WalletAddress: address,
		Asset:         asset,
		Status:        domain.SweepStatusFailed,
		Reason:        reason,
	}
}

func failAll(address, reason string) []domain.SweepOutcome {
	return []domain.SweepOutcome{
		failed(address, domain.AssetToken, reason),
		failed(address, domain.AssetNative, reason),
	}
}

func record(report domain.SweepReport) {
	for _, out := range report.Outcomes {
		metrics.SweepOutcomesTotal.WithLabelValues(string(out.Asset), string(out.Status)).Inc()
		if out.Status == domain.SweepStatusSwept && out.Display != "" {
			if v, err := strconv.ParseFloat(out.Display, 64); err == nil {
				metrics.SweptAmount.WithLabelValues(string(out.Asset)).Add(v)
			}
		}
	}
	metrics.SweepRunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	metrics.SweepLastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
}
