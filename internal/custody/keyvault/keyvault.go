// Package keyvault encrypts custodial private keys under an operator secret.
//
// Tokens have the form "<ivHex>:<ciphertextHex>": AES-256-CBC with PKCS#7
// padding, keyed by SHA-256 of the secret, with a fresh random IV per call.
// Every decryption failure returns domain.ErrDecryption and nothing else.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vietddude/sweeper/internal/core/domain"
)

const separator = ":"

// Vault binds the encryption functions to one operator secret.
type Vault struct {
	secret string
}

// New returns a vault for secret. An empty secret is a configuration error.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: key encryption secret is empty", domain.ErrConfig)
	}
	return &Vault{secret: secret}, nil
}

// Encrypt encrypts plaintext under the vault secret.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	return Encrypt(plaintext, v.secret)
}

// Decrypt decrypts a token produced by Encrypt.
func (v *Vault) Decrypt(token string) (string, error) {
	return Decrypt(token, v.secret)
}

// Rotation re-encrypts tokens from one vault's secret to another's.
type Rotation struct {
	from, to string
}

// RotateTo returns the rotation from v to next.
func (v *Vault) RotateTo(next *Vault) Rotation {
	return Rotation{from: v.secret, to: next.secret}
}

// ReEncrypt moves token from the old secret to the new one.
func (r Rotation) ReEncrypt(token string) (string, error) {
	return ReEncrypt(token, r.from, r.to)
}

// Encrypt returns an "<ivHex>:<ciphertextHex>" token. Output differs on every call.
func Encrypt(plaintext, secret string) (string, error) {
	key := deriveKey(secret)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad([]byte(plaintext))
	defer clear(padded)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. A wrong secret, a malformed token and corrupted
// ciphertext are indistinguishable to the caller.
func Decrypt(token, secret string) (string, error) {
	if token == "" {
		return "", domain.ErrDecryption
	}

	ivHex, ciphertextHex, ok := strings.Cut(token, separator)
	if !ok {
		return "", domain.ErrDecryption
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", domain.ErrDecryption
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", domain.ErrDecryption
	}

	key := deriveKey(secret)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", domain.ErrDecryption
	}

	decrypted := make([]byte, len(ciphertext))
	defer clear(decrypted)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, ciphertext)

	plaintext, ok := unpad(decrypted)
	if !ok || !isText(plaintext) {
		return "", domain.ErrDecryption
	}
	return string(plaintext), nil
}

// ReEncrypt moves a token from oldSecret to newSecret.
func ReEncrypt(token, oldSecret, newSecret string) (string, error) {
	plaintext, err := Decrypt(token, oldSecret)
	if err != nil {
		return "", err
	}
	return Encrypt(plaintext, newSecret)
}

func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad checks every padding byte rather than stopping at the first mismatch.
func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	var bad byte
	for _, b := range data[len(data)-n:] {
		bad |= b ^ byte(n)
	}
	if bad != 0 {
		return nil, false
	}
	return data[:len(data)-n], true
}

// isText rejects the binary garbage a wrong key yields when padding happens to validate.
func isText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for _, r := range string(data) {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
