package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Asset identifies what a sweep moves.
type Asset string

const (
	AssetToken  Asset = "token"
	AssetNative Asset = "native"
)

// SweepStatus is the terminal state of one asset sweep for one wallet.
type SweepStatus string

const (
	SweepStatusSwept   SweepStatus = "swept"
	SweepStatusSkipped SweepStatus = "skipped"
	SweepStatusFailed  SweepStatus = "failed"
)

// Skip and failure reasons reported in outcomes.
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonInsufficientGas     = "insufficient gas cover"
	ReasonBelowBuffer         = "below buffer"
	ReasonDecryptionFailed    = "key decryption failed"
	ReasonCancelled           = "cancelled"
	ReasonInsufficientFunds   = "insufficient funds"
	ReasonNonceConflict       = "nonce conflict"
	ReasonUnderpriced         = "replacement underpriced"
	ReasonReverted            = "reverted"
	ReasonConfirmTimeout      = "confirmation timeout"
	ReasonConfirmFailed       = "confirmation failed"
)

// AssetTransferPlan describes a single transfer the planner decided on.
// A nil or zero Amount means nothing is to be moved.
type AssetTransferPlan struct {
	WalletAddress string
	Asset         Asset
	Amount        *big.Int
}

// IsZero reports whether the plan moves nothing.
func (p AssetTransferPlan) IsZero() bool {
	return p.Amount == nil || p.Amount.Sign() <= 0
}

// SweepOutcome records what happened to one asset of one wallet during a run.
type SweepOutcome struct {
	WalletAddress string      `json:"walletAddress"`
	Asset         Asset       `json:"asset"`
	Amount        *big.Int    `json:"-"`
	Display       string      `json:"display,omitempty"` // Amount in whole units
	TxHash        string      `json:"txHash,omitempty"`
	Status        SweepStatus `json:"status"`
	Reason        string      `json:"reason,omitempty"`
}

// outcomeJSON carries Amount as a decimal string of base units.
type outcomeJSON struct {
	WalletAddress string      `json:"walletAddress"`
	Asset         Asset       `json:"asset"`
	Amount        string      `json:"amount,omitempty"`
	Display       string      `json:"display,omitempty"`
	TxHash        string      `json:"txHash,omitempty"`
	Status        SweepStatus `json:"status"`
	Reason        string      `json:"reason,omitempty"`
}

func (o SweepOutcome) MarshalJSON() ([]byte, error) {
	v := outcomeJSON{
		WalletAddress: o.WalletAddress,
		Asset:         o.Asset,
		Display:       o.Display,
		TxHash:        o.TxHash,
		Status:        o.Status,
		Reason:        o.Reason,
	}
	if o.Amount != nil {
		v.Amount = o.Amount.String()
	}
	return json.Marshal(v)
}

func (o *SweepOutcome) UnmarshalJSON(data []byte) error {
	var v outcomeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = SweepOutcome{
		WalletAddress: v.WalletAddress,
		Asset:         v.Asset,
		Display:       v.Display,
		TxHash:        v.TxHash,
		Status:        v.Status,
		Reason:        v.Reason,
	}
	if v.Amount != "" {
		amount, ok := new(big.Int).SetString(v.Amount, 10)
		if !ok {
			return fmt.Errorf("invalid outcome amount %q", v.Amount)
		}
		o.Amount = amount
	}
	return nil
}

// SweepReport is the ordered result of one orchestration run.
type SweepReport struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Wallets    int            `json:"wallets"`
	Outcomes   []SweepOutcome `json:"outcomes"`
}

// Count returns the number of outcomes with the given status.
func (r SweepReport) Count(status SweepStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// OutcomesFor returns the outcomes recorded for one wallet, in report order.
func (r SweepReport) OutcomesFor(address string) []SweepOutcome {
	var out []SweepOutcome
	for _, o := range r.Outcomes {
		if SameAddress(o.WalletAddress, address) {
			out = append(out, o)
		}
	}
	return out
}
