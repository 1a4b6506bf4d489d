package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/daily-reflections/auth"
	"github.com/warp/daily-reflections/config"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

// tokenCmd mints a bearer token signed with the configured secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local development",
	Long: `Mint a bearer token signed with auth.jwt_secret.

Examples:
  # Token for alice, valid for auth.token_ttl
  server token --user alice

  # Call the API with it
  curl -H "Authorization: Bearer $(server token --user alice)" localhost:8080/api/stats`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user ID to put in the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.token_ttl)")
	tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl).Issue(tokenUser)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
