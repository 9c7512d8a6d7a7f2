package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibbank/bnpl/internal/infrastructure/config"
	"github.com/bibbank/bnpl/pkg/auth"
	"github.com/bibbank/bnpl/pkg/tlsutil"
)

func devCertsCmd() *cobra.Command {
	var (
		outDir string
		hosts  []string
	)

	cmd := &cobra.Command{
		Use:   "dev-certs",
		Short: "Write a dev CA and gRPC server certificate for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := tlsutil.GenerateDevCertificates(outDir, hosts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), files)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "certs", "Output directory")
	cmd.Flags().StringSliceVar(&hosts, "hosts", []string{"localhost", "127.0.0.1"}, "Hosts the certificate is valid for")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		tenantID, userID string
		roles            []string
		ttl              time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HMAC-signed JWT from JWT_SECRET for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			svc, err := auth.NewJWTService(auth.JWTConfig{
				Secret:     cfg.JWT.Secret,
				Issuer:     cfg.JWT.Issuer,
				Expiration: ttl,
			})
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(userID, tenantID, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant the token is issued for")
	cmd.Flags().StringVar(&userID, "user", "bnplctl", "Subject of the token")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{auth.RoleOperator}, "Roles granted")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
