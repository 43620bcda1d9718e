package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/core/units"
)

const (
	DefaultChainID      = 171717
	DefaultTokenAddress = "0x40CB2CCcF80Ed2192b53FB09720405F6Fe349743"
)

// LoadDotEnv loads a .env file into the process environment if present.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides and defaults. It does not validate.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = DefaultChainID
	}
	if cfg.Chain.CallTimeout == 0 {
		cfg.Chain.CallTimeout = 15 * time.Second
	}
	if cfg.Chain.ConfirmTimeout == 0 {
		cfg.Chain.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.Custody.FundingAmount == "" {
		cfg.Custody.FundingAmount = "1"
	}
	if cfg.Sweep.TokenAddress == "" {
		cfg.Sweep.TokenAddress = DefaultTokenAddress
	}
	if cfg.Sweep.NativeBuffer == "" {
		cfg.Sweep.NativeBuffer = "1"
	}
	if cfg.Sweep.MaxRetries == 0 {
		cfg.Sweep.MaxRetries = 3
	}
	if cfg.Sweep.RetryDelay == 0 {
		cfg.Sweep.RetryDelay = 2 * time.Second
	}
	if cfg.Sweep.GasPrice == "" {
		cfg.Sweep.GasPrice = "0"
	}
	if cfg.Sweep.GasLimit == 0 {
		cfg.Sweep.GasLimit = 21000
	}
	if cfg.Sweep.TokenGasLimit == 0 {
		cfg.Sweep.TokenGasLimit = 100000
	}
	if cfg.Sweep.Concurrency == 0 {
		cfg.Sweep.Concurrency = 1
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = LedgerJSONFile
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data/wallets.json"
	}
	if cfg.API.Issuer == "" {
		cfg.API.Issuer = "sweeper"
	}
	if cfg.API.TokenTTL == 0 {
		cfg.API.TokenTTL = 24 * time.Hour
	}
}

// ValidateCustody checks what is needed to read or write the ledger.
func (c *AppConfig) ValidateCustody() error {
	var errs []error
	if c.Custody.EncryptionSecret == "" {
		errs = append(errs, errors.New("KEY_ENCRYPTION_SECRET is required"))
	}
	switch c.Ledger.Backend {
	case LedgerJSONFile, LedgerMemory:
	case LedgerPostgres:
		if c.Ledger.Database.URL == "" {
			errs = append(errs, errors.New("ledger.database.url is required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}
	return wrap(errs)
}

// Validate checks the full configuration needed to sweep.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.ValidateCustody(); err != nil {
		errs = append(errs, err)
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if !common.IsHexAddress(c.Sweep.HotWallet) {
		errs = append(errs, fmt.Errorf("invalid hot wallet address %q", c.Sweep.HotWallet))
	}
	if !common.IsHexAddress(c.Sweep.TokenAddress) {
		errs = append(errs, fmt.Errorf("invalid token address %q", c.Sweep.TokenAddress))
	}
	if _, err := c.NativeBufferWei(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GasPriceWei(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FundingWei(); err != nil {
		errs = append(errs, err)
	}
	if c.Chain.MasterKey != "" {
		if _, err := c.MasterKey(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Sweep.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", c.Sweep.MaxRetries))
	}
	if c.Sweep.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Sweep.Concurrency))
	}
	if c.Sweep.GasLimit < 21000 {
		errs = append(errs, fmt.Errorf("gas limit %d is below the 21000 intrinsic cost", c.Sweep.GasLimit))
	}
	return wrap(errs)
}

func wrap(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfig, errors.Join(errs...))
}

func (c *AppConfig) NativeBufferWei() (*big.Int, error) {
	v, err := units.ToBaseUnits(c.Sweep.NativeBuffer, units.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("native buffer: %w", err)
	}
	return v, nil
}

func (c *AppConfig) FundingWei() (*big.Int, error) {
	v, err := units.ToBaseUnits(c.Custody.FundingAmount, units.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("funding amount: %w", err)
	}
	return v, nil
}

// GasPriceWei returns the fixed gas price, or nil when it should be estimated.
func (c *AppConfig) GasPriceWei() (*big.Int, error) {
	v, err := units.ToBaseUnits(c.Sweep.GasPrice, 0)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	if v.Sign() == 0 {
		return nil, nil
	}
	return v, nil
}

// MasterKey parses the funding wallet key, or returns nil when unset.
func (c *AppConfig) MasterKey() (*ecdsa.PrivateKey, error) {
	if c.Chain.MasterKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.Chain.MasterKey, "0x"))
	if err != nil {
		return nil, errors.New("invalid master wallet private key")
	}
	return key, nil
}
