package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

// PackTransfer encodes transfer(to, amount) call data.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, amount)
}

// PackBalanceOf encodes balanceOf(owner) call data.
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return parsedERC20.Pack("balanceOf", owner)
}

func PackDecimals() ([]byte, error) {
	return parsedERC20.Pack("decimals")
}

// UnpackBalanceOf decodes the uint256 returned by balanceOf.
func UnpackBalanceOf(data []byte) (*big.Int, error) {
	out, err := parsedERC20.Unpack("balanceOf", data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from balanceOf")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}
	return v, nil
}

// UnpackDecimals decodes the uint8 returned by decimals.
func UnpackDecimals(data []byte) (uint8, error) {
	out, err := parsedERC20.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty result from decimals")
	}

	switch v := out[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals result type %T", out[0])
	}
}
