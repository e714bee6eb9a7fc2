package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/favorites/internal/auth"
)

// newTokenCommand mints bearer tokens for local development against a
// server that shares the JWT secret.
func newTokenCommand(global *globalOptions) *cobra.Command {
	var (
		name   string
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development JWT for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("user id must be a positive integer, got %q", args[0])
			}

			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens in production")
			}
			if expiry <= 0 {
				expiry = cfg.Auth.JWTExpiry
			}

			token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, expiry, cfg.Auth.JWTIssuer).Generate(userID, name)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default: JWT_EXPIRY)")
	return cmd
}
