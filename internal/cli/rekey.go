package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/sweeper/internal/custody/keyvault"
)

var newSecretEnv string

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt every stored key under a new encryption secret",
	Long: `Rekey decrypts every wallet with KEY_ENCRYPTION_SECRET and re-encrypts it with the
secret read from --new-secret-env. The ledger is rewritten in one step; if any
record fails to decrypt nothing is changed.`,
	Run: runRekey,
}

func init() {
	rekeyCmd.Flags().StringVar(&newSecretEnv, "new-secret-env", "NEW_KEY_ENCRYPTION_SECRET", "environment variable holding the new secret")
	rootCmd.AddCommand(rekeyCmd)
}

func runRekey(cmd *cobra.Command, args []string) {
	next, err := keyvault.New(os.Getenv(newSecretEnv))
	if err != nil {
		slog.Error("New secret is not set", "env", newSecretEnv)
		os.Exit(1)
	}
	if os.Getenv(newSecretEnv) == appCfg.Custody.EncryptionSecret {
		slog.Error("New secret equals the current secret")
		os.Exit(1)
	}

	ctx := context.Background()
	manager, current, ledger := openCustody(ctx)
	defer func() {
		_ = ledger.Close()
	}()

	n, err := manager.Rekey(ctx, current.RotateTo(next), next)
	if err != nil {
		slog.Error("Rekey failed, ledger unchanged", "error", err)
		_ = ledger.Close()
		os.Exit(1)
	}
	fmt.Printf("Re-encrypted %d wallets. Set KEY_ENCRYPTION_SECRET to the new secret before restarting.\n", n)
}
