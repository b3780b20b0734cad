package main

import (
	"fmt"
	"time"

	"civicrelay/pkg/auth"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		userID     string
		cloudToken string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an identity token for local testing",
		Long: `Sign a bearer token with the configured secret. Use --user with the
configured admin user to get an administrative token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.Auth.TokenTTL.Std()
			}

			tm, err := auth.NewTokenManager(auth.TokenConfig{
				Secret:    cfg.Auth.Secret,
				AdminUser: cfg.Auth.AdminUser,
				TTL:       ttl,
			})
			if err != nil {
				return err
			}

			token, err := tm.GenerateToken(userID, cloudToken)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to embed (required)")
	cmd.Flags().StringVar(&cloudToken, "cloud-token", "dev", "storage cluster token forwarded on uploads")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}
