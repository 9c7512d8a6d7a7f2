package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/application/usecase"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/infrastructure/clock"
	"github.com/bibbank/bnpl/internal/infrastructure/config"
	pgRepo "github.com/bibbank/bnpl/internal/infrastructure/postgres"
	pkgpostgres "github.com/bibbank/bnpl/pkg/postgres"
)

func accrueCmd() *cobra.Command {
	var (
		asOf      string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Run late-interest accrual over every overdue plan once",
		Long: `Runs the same accrual pass as the scheduler, without the distributed lock.
Re-running for the same date is a no-op.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := cliLogger(cfg)

			req := dto.RunLateInterestAccrualRequest{BatchSize: batchSize}
			if asOf != "" {
				t, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return err
				}
				req.AsOf = t
			}

			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			clk := clock.New()
			store := pgRepo.NewLedgerStore(pool, pkgpostgres.DefaultRetryPolicy())
			accrue := usecase.NewAccrueLateInterestUseCase(store,
				service.NewLateInterestAccrualProcessor(), service.NewSnapshotBuilder(), clk, logger)
			run := usecase.NewRunLateInterestAccrualUseCase(pgRepo.NewPlanRepo(pool), accrue, clk, logger)

			resp, runErr := run.Execute(cmd.Context(), req)
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Accrual instant (RFC 3339), defaults to now")
	cmd.Flags().IntVar(&batchSize, "batch-size", usecase.DefaultAccrualBatchSize, "Plans read per page")

	return cmd
}
