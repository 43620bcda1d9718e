package cli

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/sweeper/internal/core/config"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath string
	envPath string
	isDebug bool

	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Custodial wallet sweeper",
	Long: `Sweeper keeps encrypted custodial EVM wallets and periodically moves their
native balance and one ERC-20 token into an operator hot wallet.`,
	PersistentPreRun: setup,
	Run:              runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file, optional when everything is set in the environment")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setup loads .env and the config, then installs the default logger.
func setup(cmd *cobra.Command, args []string) {
	if err := config.LoadDotEnv(envPath); err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(resolveConfigPath(cfgPath, cmd.Flags().Changed("config")))
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	appCfg = cfg

	stylelog.InitDefault(&tint.Options{
		Level:      logLevel(cfg.Logging.Level, isDebug),
		TimeFormat: time.RFC3339,
	})
}

// resolveConfigPath drops the default path when that file does not exist.
func resolveConfigPath(path string, explicit bool) string {
	if explicit || path != defaultConfigPath {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

func logLevel(level string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
