// Package units converts between whole-unit decimal strings and integer base units.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the chain's native currency (wei).
const NativeDecimals = 18

// ToBaseUnits parses a decimal amount such as "1.5" into base units.
// Negative amounts and amounts finer than the precision are rejected.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", amount)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits formats base units as a decimal string in whole units.
func FromBaseUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// Ether formats wei as whole native units.
func Ether(wei *big.Int) string {
	return FromBaseUnits(wei, NativeDecimals)
}
