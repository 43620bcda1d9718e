package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sweeper/internal/control"
	"github.com/vietddude/sweeper/internal/custody/keyvault"
	"github.com/vietddude/sweeper/internal/custody/wallet"
	"github.com/vietddude/sweeper/internal/infra/storage"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage custodial wallets",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create, store and fund a new custodial wallet",
	Run:   runWalletCreate,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custodial wallet addresses",
	Run:   runWalletList,
}

func init() {
	walletCmd.AddCommand(walletCreateCmd, walletListCmd)
	rootCmd.AddCommand(walletCmd)
}

func runWalletCreate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app, err := control.New(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize sweeper", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	view, err := app.Wallets().CreateCustodialWallet(ctx)
	if err != nil {
		slog.Error("Failed to create wallet", "error", err)
		app.Close()
		os.Exit(1)
	}
	fmt.Println(view.Address)
}

func runWalletList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	manager, _, ledger := openCustody(ctx)
	defer func() {
		_ = ledger.Close()
	}()

	wallets, err := manager.ListWallets(ctx)
	if err != nil {
		slog.Error("Failed to list wallets", "error", err)
		_ = ledger.Close()
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADDRESS\tCREATED")
	for _, v := range wallets {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", v.Address, v.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

// openCustody opens the ledger without connecting to the chain.
func openCustody(ctx context.Context) (*wallet.Manager, *keyvault.Vault, storage.WalletLedger) {
	if err := appCfg.ValidateCustody(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	vault, err := keyvault.New(appCfg.Custody.EncryptionSecret)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	ledger, _, err := control.OpenLedger(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	return wallet.NewManager(ledger, vault, wallet.Funding{}, nil), vault, ledger
}
