package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/sweeper/internal/control"
	"github.com/vietddude/sweeper/internal/core/domain"
)

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep every custodial wallet once and print the report",
	Run:   runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.New(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize sweeper", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	report, err := app.TriggerSweep(ctx)
	if report.RunID != "" {
		if sweepJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		} else {
			printReport(os.Stdout, report)
		}
	}
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		app.Close()
		os.Exit(1)
	}
}

func printReport(out io.Writer, report domain.SweepReport) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "WALLET\tASSET\tAMOUNT\tSTATUS\tTX / REASON")
	for _, o := range report.Outcomes {
		detail := o.TxHash
		if o.Reason != "" {
			detail = o.Reason
		}
		amount := o.Display
		if amount == "" {
			amount = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.WalletAddress, o.Asset, amount, statusColor(o.Status), detail)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nrun %s: %d wallets, %s swept, %s skipped, %s failed in %s\n",
		report.RunID,
		report.Wallets,
		color.GreenString("%d", report.Count(domain.SweepStatusSwept)),
		color.YellowString("%d", report.Count(domain.SweepStatusSkipped)),
		color.RedString("%d", report.Count(domain.SweepStatusFailed)),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
}

func statusColor(s domain.SweepStatus) string {
	switch s {
	case domain.SweepStatusSwept:
		return color.GreenString(string(s))
	case domain.SweepStatusSkipped:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
