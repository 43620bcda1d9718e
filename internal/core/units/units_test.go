package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.001", 18, "1000000000000000"},
		{"3.999", 18, "3999000000000000000"},
		{"100", 6, "100000000"},
		{"0", 6, "0"},
	}

	for _, tt := range tests {
		got, err := ToBaseUnits(tt.in, tt.decimals)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestToBaseUnits_Rejects(t *testing.T) {
	for _, in := range []string{"-1", "abc", "0.0000001"} {
		_, err := ToBaseUnits(in, 6)
		assert.Error(t, err, in)
	}
}

func TestFromBaseUnits(t *testing.T) {
	wei, ok := new(big.Int).SetString("3999000000000000000", 10)
	require.True(t, ok)

	assert.Equal(t, "3.999", Ether(wei))
	assert.Equal(t, "100", FromBaseUnits(big.NewInt(100_000_000), 6))
	assert.Equal(t, "0", FromBaseUnits(nil, 6))
}
