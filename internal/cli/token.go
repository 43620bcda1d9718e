package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sweeper/internal/api"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Run:   runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default api.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) {
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = appCfg.API.TokenTTL
	}
	token, err := api.IssueToken(appCfg.API.JWTSecret, appCfg.API.Issuer, tokenSubject, ttl)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
