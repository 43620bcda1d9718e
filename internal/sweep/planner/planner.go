// Package planner decides whether and how much of each asset to sweep.
// It performs no I/O.
package planner

import (
	"math/big"

	"github.com/vietddude/sweeper/internal/core/domain"
)

// Params holds the gas and buffer settings used for one run.
type Params struct {
	// NativeBuffer is left behind on every wallet, in wei
	NativeBuffer  *big.Int
	GasPrice      *big.Int
	GasLimit      uint64
	TokenGasLimit uint64
}

// NativeGasCost is gasPrice * gasLimit.
func (p Params) NativeGasCost() *big.Int {
	return gasCost(p.GasPrice, p.GasLimit)
}

// TokenGasCost is gasPrice * tokenGasLimit.
func (p Params) TokenGasCost() *big.Int {
	return gasCost(p.GasPrice, p.TokenGasLimit)
}

func gasCost(price *big.Int, limit uint64) *big.Int {
	return new(big.Int).Mul(orZero(price), new(big.Int).SetUint64(limit))
}

// Decision is either a transfer plan or a skip reason.
type Decision struct {
	Plan   domain.AssetTransferPlan
	Reason string
}

func (d Decision) Skipped() bool {
	return d.Reason != "" || d.Plan.IsZero()
}

func skip(wallet string, asset domain.Asset, reason string) Decision {
	return Decision{
		Plan:   domain.AssetTransferPlan{WalletAddress: wallet, Asset: asset},
		Reason: reason,
	}
}

// PlanToken moves the full token balance when the wallet can pay for the transfer.
func PlanToken(wallet string, native, tokens *big.Int, p Params) Decision {
	tokens = orZero(tokens)
	if tokens.Sign() <= 0 {
		return skip(wallet, domain.AssetToken, domain.ReasonInsufficientBalance)
	}
	if orZero(native).Cmp(p.TokenGasCost()) <= 0 {
		return skip(wallet, domain.AssetToken, domain.ReasonInsufficientGas)
	}
	return Decision{Plan: domain.AssetTransferPlan{
		WalletAddress: wallet,
		Asset:         domain.AssetToken,
		Amount:        new(big.Int).Set(tokens),
	}}
}

// PlanNative moves everything above buffer + gas cost.
func PlanNative(wallet string, native *big.Int, p Params) Decision {
	native = orZero(native)
	buffer := orZero(p.NativeBuffer)

	if native.Cmp(buffer) <= 0 {
		return skip(wallet, domain.AssetNative, domain.ReasonBelowBuffer)
	}

	reserve := new(big.Int).Add(buffer, p.NativeGasCost())
	if native.Cmp(reserve) <= 0 {
		return skip(wallet, domain.AssetNative, domain.ReasonInsufficientGas)
	}
	return Decision{Plan: domain.AssetTransferPlan{
		WalletAddress: wallet,
		Asset:         domain.AssetNative,
		Amount:        new(big.Int).Sub(native, reserve),
	}}
}

// Plan returns the token decision followed by the native decision, both
// computed from the same balance snapshot.
func Plan(wallet string, native, tokens *big.Int, p Params) []Decision {
	return []Decision{
		PlanToken(wallet, native, tokens, p),
		PlanNative(wallet, native, p),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
