package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lisan-ai/lisan/pkg/auth"
	"github.com/lisan-ai/lisan/pkg/config"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for a subject using the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if ttl > 0 {
				cfg.Auth.TokenTTL = ttl
			}

			tokens, err := auth.NewTokens(cfg.Auth)
			if err != nil {
				return err
			}
			token, exp, err := tokens.Issue(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	return cmd
}
