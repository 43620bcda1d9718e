package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sweeper/internal/core/domain"
)

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := domain.SweepReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Wallets:    1,
		Outcomes: []domain.SweepOutcome{
			{WalletAddress: "0xabc", Asset: domain.AssetToken, Status: domain.SweepStatusSkipped, Reason: domain.ReasonInsufficientGas},
			{WalletAddress: "0xabc", Asset: domain.AssetNative, Display: "3.999", TxHash: "0xdead", Status: domain.SweepStatusSwept},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "insufficient gas cover")
	assert.Contains(t, out, "3.999")
	assert.Contains(t, out, "0xdead")
	assert.Contains(t, out, "run run-1: 1 wallets, 1 swept, 1 skipped, 0 failed in 1.5s")
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.Equal(t, "", resolveConfigPath(defaultConfigPath, false), "missing default file is skipped")
	assert.Equal(t, defaultConfigPath, resolveConfigPath(defaultConfigPath, true), "explicit path is kept")
	assert.Equal(t, "other.yaml", resolveConfigPath("other.yaml", false))

	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigPath), []byte("{}"), 0o600))
	assert.Equal(t, defaultConfigPath, resolveConfigPath(defaultConfigPath, false))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("info", true))
	assert.Equal(t, slog.LevelDebug, logLevel("debug", false))
	assert.Equal(t, slog.LevelWarn, logLevel("warn", false))
	assert.Equal(t, slog.LevelError, logLevel("error", false))
	assert.Equal(t, slog.LevelInfo, logLevel("", false))
}
