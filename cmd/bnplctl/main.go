// Command bnplctl is the operator CLI for the BNPL ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bibbank/bnpl/internal/infrastructure/config"
	"github.com/bibbank/bnpl/pkg/observability"
	pkgpostgres "github.com/bibbank/bnpl/pkg/postgres"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "bnplctl",
		Short:         "Operate the BNPL installment ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(accrueCmd())
	rootCmd.AddCommand(verifySnapshotsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(devCertsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliLogger writes to stderr so command output stays parseable.
func cliLogger(cfg config.Config) *slog.Logger {
	lc := cfg.Logging()
	lc.Format = "text"
	lc.Output = os.Stderr
	return observability.InitLogger(lc)
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pkgpostgres.NewPool(ctx, cfg.Postgres())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
