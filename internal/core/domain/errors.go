package domain

import "errors"

var (
	// ErrConfig marks a configuration problem that must stop the process.
	ErrConfig = errors.New("invalid configuration")

	// ErrDecryption is returned for any key decryption failure.
	// It deliberately carries no detail about the cause.
	ErrDecryption = errors.New("decryption failed")

	// ErrLedgerCorruption marks an unparsable wallet store. Callers recover by
	// treating the store as empty.
	ErrLedgerCorruption = errors.New("wallet ledger corrupted")

	// ErrRPCTransient marks an RPC failure expected to resolve on retry.
	ErrRPCTransient = errors.New("transient rpc error")

	// ErrRPCFatal marks an RPC failure that must not be retried.
	ErrRPCFatal = errors.New("fatal rpc error")

	// ErrRPCExhausted is returned once transient retries are used up.
	ErrRPCExhausted = errors.New("rpc retries exhausted")

	// ErrTransactionFailed marks a rejected or reverted transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrDuplicateWallet = errors.New("wallet already exists")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrSweepInProgress = errors.New("sweep already in progress")
)
