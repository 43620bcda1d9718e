package keyvault

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sweeper/internal/core/domain"
)

func newPrivateKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key))
}

func TestRoundTrip(t *testing.T) {
	secrets := []string{"s", "operator-secret", strings.Repeat("x", 200), "ünïcødé"}

	for i := 0; i < 25; i++ {
		plaintext := newPrivateKeyHex(t)
		for _, secret := range secrets {
			token, err := Encrypt(plaintext, secret)
			require.NoError(t, err)

			got, err := Decrypt(token, secret)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		}
	}
}

func TestRoundTrip_BlockAlignedAndEmpty(t *testing.T) {
	for _, plaintext := range []string{"", "0123456789abcdef", strings.Repeat("a", 32)} {
		token, err := Encrypt(plaintext, "secret")
		require.NoError(t, err)

		got, err := Decrypt(token, "secret")
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_FreshIVEachCall(t *testing.T) {
	plaintext := newPrivateKeyHex(t)

	a, err := Encrypt(plaintext, "secret")
	require.NoError(t, err)
	b, err := Encrypt(plaintext, "secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	ivHex, ciphertextHex, ok := strings.Cut(a, ":")
	require.True(t, ok)
	assert.Len(t, ivHex, 32)
	_, err = hex.DecodeString(ciphertextHex)
	assert.NoError(t, err)
}

func TestDecrypt_WrongSecret(t *testing.T) {
	for i := 0; i < 200; i++ {
		token, err := Encrypt(newPrivateKeyHex(t), "right-secret")
		require.NoError(t, err)

		got, err := Decrypt(token, "wrong-secret")
		require.ErrorIs(t, err, domain.ErrDecryption)
		assert.Empty(t, got)
	}
}

func TestDecrypt_MalformedTokens(t *testing.T) {
	valid, err := Encrypt(newPrivateKeyHex(t), "secret")
	require.NoError(t, err)
	ivHex, ciphertextHex, _ := strings.Cut(valid, ":")

	tests := map[string]string{
		"empty":             "",
		"single part":       ivHex + ciphertextHex,
		"non-hex iv":        "zz" + ivHex[2:] + ":" + ciphertextHex,
		"short iv":          ivHex[:30] + ":" + ciphertextHex,
		"non-hex body":      ivHex + ":" + "xyz",
		"empty body":        ivHex + ":",
		"truncated block":   ivHex + ":" + ciphertextHex[:len(ciphertextHex)-2],
		"extra separator":   ivHex + ":" + ciphertextHex + ":00",
		"separator only":    ":",
		"trailing garbage":  valid + "00",
		"leading separator": ":" + valid,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decrypt(token, "secret")
			assert.ErrorIs(t, err, domain.ErrDecryption)
		})
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	token, err := Encrypt(newPrivateKeyHex(t), "secret")
	require.NoError(t, err)

	ivHex, ciphertextHex, _ := strings.Cut(token, ":")
	ciphertext, err := hex.DecodeString(ciphertextHex)
	require.NoError(t, err)

	ciphertext[3] ^= 0xff
	tampered := ivHex + ":" + hex.EncodeToString(ciphertext)

	_, err = Decrypt(tampered, "secret")
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestReEncrypt(t *testing.T) {
	plaintext := newPrivateKeyHex(t)
	token, err := Encrypt(plaintext, "old")
	require.NoError(t, err)

	rotated, err := ReEncrypt(token, "old", "new")
	require.NoError(t, err)

	got, err := Decrypt(rotated, "new")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = Decrypt(rotated, "old")
	assert.ErrorIs(t, err, domain.ErrDecryption)

	_, err = ReEncrypt(token, "wrong", "new")
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestVault_RotateTo(t *testing.T) {
	oldV, err := New("old")
	require.NoError(t, err)
	newV, err := New("new")
	require.NoError(t, err)

	plaintext := newPrivateKeyHex(t)
	token, err := oldV.Encrypt(plaintext)
	require.NoError(t, err)

	rotated, err := oldV.RotateTo(newV).ReEncrypt(token)
	require.NoError(t, err)
	got, err := newV.Decrypt(rotated)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = newV.RotateTo(oldV).ReEncrypt(token)
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, domain.ErrConfig)

	v, err := New("secret")
	require.NoError(t, err)

	token, err := v.Encrypt("0xabc")
	require.NoError(t, err)
	got, err := v.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got)
}
