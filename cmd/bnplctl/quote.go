package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/application/usecase"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/infrastructure/clock"
)

// adHocPlanTypes serves a single plan type built from flags.
type adHocPlanTypes struct {
	pt model.PlanType
}

func (a adHocPlanTypes) Save(context.Context, model.PlanType) error { return nil }

func (a adHocPlanTypes) FindByID(_ context.Context, id string) (model.PlanType, error) {
	if id != a.pt.ID() {
		return model.PlanType{}, model.ErrPlanTypeNotFound
	}
	return a.pt, nil
}

func (a adHocPlanTypes) List(context.Context) ([]model.PlanType, error) {
	return []model.PlanType{a.pt}, nil
}

func quoteCmd() *cobra.Command {
	var (
		total, initial, rate, lateRate string
		count, durationDays            int
		startDate                      string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an installment plan without touching the ledger",
		Example: `  bnplctl quote --total 1000 --count 4 --rate 10 --duration-days 30
  bnplctl quote --total 100 --initial 20 --count 3 --rate 0 --start 2024-01-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orderTotal, err := decimal.NewFromString(total)
			if err != nil {
				return err
			}
			initialPayment, err := decimal.NewFromString(initial)
			if err != nil {
				return err
			}
			interest, err := decimal.NewFromString(rate)
			if err != nil {
				return err
			}
			late, err := decimal.NewFromString(lateRate)
			if err != nil {
				return err
			}

			clk := clock.New()
			pt, err := model.NewPlanType("ad hoc", durationDays, interest, late, "", clk.Now())
			if err != nil {
				return err
			}

			req := dto.QuotePlanRequest{
				PlanTypeID:       pt.ID(),
				OrderTotal:       orderTotal,
				InitialPayment:   initialPayment,
				InstallmentCount: count,
			}
			if startDate != "" {
				if req.StartDate, err = time.Parse(time.DateOnly, startDate); err != nil {
					return err
				}
			}

			resp, err := usecase.NewQuotePlanUseCase(adHocPlanTypes{pt: pt}, clk).Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&total, "total", "", "Order total")
	cmd.Flags().StringVar(&initial, "initial", "0", "Initial payment")
	cmd.Flags().IntVar(&count, "count", 4, "Number of installments")
	cmd.Flags().StringVar(&rate, "rate", "0", "Interest rate in percent")
	cmd.Flags().StringVar(&lateRate, "late-rate", "0", "Late interest rate in percent")
	cmd.Flags().IntVar(&durationDays, "duration-days", 30, "Days between installments")
	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD), defaults to today")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}
