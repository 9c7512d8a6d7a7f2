package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/application/usecase"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/infrastructure/config"
	pgRepo "github.com/bibbank/bnpl/internal/infrastructure/postgres"
)

func verifySnapshotsCmd() *cobra.Command {
	var tenantID, planID string

	cmd := &cobra.Command{
		Use:   "verify-snapshots",
		Short: "Recompute a plan's snapshot hashes and report tampering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			verify := usecase.NewVerifySnapshotsUseCase(
				pgRepo.NewPlanRepo(pool), pgRepo.NewSnapshotRepo(pool), service.NewSnapshotBuilder())
			resp, err := verify.Execute(cmd.Context(), dto.VerifySnapshotsRequest{TenantID: tenantID, PlanID: planID})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Valid {
				return fmt.Errorf("%d of %d snapshots failed verification", len(resp.Mismatched), resp.Checked)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant owning the plan")
	cmd.Flags().StringVar(&planID, "plan", "", "Plan ID")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}
