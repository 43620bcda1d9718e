package domain

import (
	"strings"
	"time"
)

// WalletRecord is a custodial wallet as persisted in the ledger.
// EncryptedKey is an opaque "<ivHex>:<ciphertextHex>" token and must never be logged.
type WalletRecord struct {
	Address      string    `json:"address"`
	EncryptedKey string    `json:"encryptedKey"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WalletView is the public projection of a wallet record.
type WalletView struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// View strips the key material from the record.
func (w WalletRecord) View() WalletView {
	return WalletView{Address: w.Address, CreatedAt: w.CreatedAt}
}

// SameAddress compares two hex addresses ignoring EIP-55 checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// IndexOfAddress returns the position of address in records, or -1.
func IndexOfAddress(records []WalletRecord, address string) int {
	for i := range records {
		if SameAddress(records[i].Address, address) {
			return i
		}
	}
	return -1
}
