package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

// DefaultAccrualBatchSize bounds how many plan refs are read per page.
const DefaultAccrualBatchSize = 200

// RunLateInterestAccrualUseCase accrues late interest on every overdue plan.
// Plans are processed independently: one plan failing does not stop the rest.
type RunLateInterestAccrualUseCase struct {
	reader port.PlanReader
	accrue *AccrueLateInterestUseCase
	clock  port.Clock
	logger *slog.Logger
}

// NewRunLateInterestAccrualUseCase wires dependencies.
func NewRunLateInterestAccrualUseCase(
	reader port.PlanReader,
	accrue *AccrueLateInterestUseCase,
	clock port.Clock,
	logger *slog.Logger,
) *RunLateInterestAccrualUseCase {
	return &RunLateInterestAccrualUseCase{reader: reader, accrue: accrue, clock: clock, logger: logger}
}

// Execute walks the overdue plans page by page.
//
// The returned error is the first invariant violation met, if any, so the
// caller can stop retrying. Otherwise it joins the transient failures, which
// a later run may clear. Business rejections are only reported in Failures.
func (uc *RunLateInterestAccrualUseCase) Execute(
	ctx context.Context,
	req dto.RunLateInterestAccrualRequest,
) (resp dto.RunAccrualResponse, err error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = uc.clock.Now()
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = DefaultAccrualBatchSize
	}

	ctx, span := startSpan(ctx, "RunLateInterestAccrual", attribute.String("as_of", asOf.UTC().String()))
	defer func() { endSpan(span, err) }()

	resp = dto.RunAccrualResponse{AsOf: asOf, InterestAdded: decimal.Zero}
	var (
		fatal     error
		transient []error
		after     string
	)

	for {
		refs, err := uc.reader.ListOverduePlanIDs(ctx, asOf, after, batch)
		if err != nil {
			transient = append(transient, fmt.Errorf("list overdue plans: %w", err))
			break
		}

		for _, ref := range refs {
			if ctx.Err() != nil {
				return resp, ctx.Err()
			}
			resp.Processed++

			out, err := uc.accrue.Execute(ctx, dto.AccrueLateInterestRequest{
				AsOf:     asOf,
				TenantID: ref.TenantID,
				PlanID:   ref.PlanID,
			})
			if err != nil {
				resp.Failures = append(resp.Failures, dto.AccrualFailure{
					TenantID: ref.TenantID,
					PlanID:   ref.PlanID,
					Error:    err.Error(),
					Fatal:    model.IsFatal(err),
				})
				switch {
				case model.IsFatal(err):
					if fatal == nil {
						fatal = err
					}
				case model.IsLogical(err):
					uc.logger.WarnContext(ctx, "accrual rejected",
						"tenant_id", ref.TenantID, "plan_id", ref.PlanID, "error", err)
				default:
					transient = append(transient, fmt.Errorf("plan %s: %w", ref.PlanID, err))
				}
				continue
			}
			if !out.NoOp {
				resp.Mutated++
				resp.InterestAdded = resp.InterestAdded.Add(out.InterestAdded)
			}
		}

		if len(refs) < batch {
			break
		}
		after = refs[len(refs)-1].PlanID
	}

	uc.logger.InfoContext(ctx, "late interest accrual run finished",
		"as_of", asOf,
		"processed", resp.Processed,
		"mutated", resp.Mutated,
		"failed", len(resp.Failures),
		"interest_added", resp.InterestAdded.StringFixed(2),
	)

	if fatal != nil {
		return resp, fatal
	}
	return resp, errors.Join(transient...)
}
