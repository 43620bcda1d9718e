package config

import (
	"time"

	"github.com/vietddude/sweeper/internal/infra/events"
	redisclient "github.com/vietddude/sweeper/internal/infra/redis"
	"github.com/vietddude/sweeper/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
	Chain   ChainConfig        `yaml:"chain"`
	Custody CustodyConfig      `yaml:"custody"`
	Sweep   SweepConfig        `yaml:"sweep"`
	Ledger  LedgerConfig       `yaml:"ledger"`
	Redis   redisclient.Config `yaml:"redis"`
	NATS    events.Config      `yaml:"nats"`
	API     APIConfig          `yaml:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" env:"APP_PORT"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json, text
}

// ChainConfig describes the single EVM chain being swept.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url" env:"RPC_URL"`
	ChainID int64  `yaml:"chain_id" env:"CHAIN_ID"`
	// MasterKey funds newly created wallets. Optional.
	MasterKey      string        `yaml:"master_private_key" env:"MASTER_WALLET_PRIVATE_KEY"`
	CallTimeout    time.Duration `yaml:"call_timeout" env:"RPC_CALL_TIMEOUT"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" env:"CONFIRM_TIMEOUT"`
}

type CustodyConfig struct {
	EncryptionSecret string `yaml:"encryption_secret" env:"KEY_ENCRYPTION_SECRET"`
	// FundingAmount is sent from the master wallet to every new wallet, in whole units.
	FundingAmount string `yaml:"funding_amount" env:"FUNDING_AMOUNT"`
}

// SweepConfig holds sweep policy. Amounts are decimal strings in whole units,
// gas price is in wei.
type SweepConfig struct {
	HotWallet     string        `yaml:"hot_wallet_address" env:"HOT_WALLET_ADDRESS"`
	TokenAddress  string        `yaml:"token_address" env:"USDT_CONTRACT"`
	NativeBuffer  string        `yaml:"native_buffer" env:"WCO_BUFFER"`
	MaxRetries    int           `yaml:"max_retries" env:"SWEEP_RETRIES"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"SWEEP_RETRY_DELAY"`
	GasPrice      string        `yaml:"gas_price" env:"GAS_PRICE"` // 0 = estimate
	GasLimit      uint64        `yaml:"gas_limit" env:"GAS_LIMIT"`
	TokenGasLimit uint64        `yaml:"token_gas_limit" env:"TOKEN_GAS_LIMIT"`
	Concurrency   int           `yaml:"concurrency" env:"SWEEP_CONCURRENCY"`
	Interval      time.Duration `yaml:"interval" env:"SWEEP_INTERVAL"` // 0 = manual only
	// SingleSnapshot plans the native sweep from the balance read before the
	// token transfer instead of re-reading it.
	SingleSnapshot bool `yaml:"single_snapshot" env:"SWEEP_SINGLE_SNAPSHOT"`
}

const (
	LedgerJSONFile = "jsonfile"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

type LedgerConfig struct {
	Backend  string          `yaml:"backend" env:"LEDGER_BACKEND"`
	Path     string          `yaml:"path" env:"LEDGER_PATH"`
	Database postgres.Config `yaml:"database"`
}

// APIConfig controls HTTP authentication. An empty JWTSecret disables auth.
type APIConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"API_JWT_SECRET"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}
