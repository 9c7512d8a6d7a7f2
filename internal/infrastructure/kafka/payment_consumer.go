package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/pkg/events"
	pkgkafka "github.com/bibbank/bnpl/pkg/kafka"
)

// PaymentApplier is satisfied by *usecase.ApplyPaymentUseCase.
type PaymentApplier interface {
	Execute(ctx context.Context, req dto.ApplyPaymentRequest) (dto.PaymentResponse, error)
}

// PaymentCaptured is the payload published by the payment gateway once funds
// for an installment plan have been captured.
type PaymentCaptured struct {
	TenantID       string          `json:"tenant_id"`
	PlanID         string          `json:"plan_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// NewPaymentCapturedHandler applies captured payments to their plans.
//
// Only transient failures return an error, which leaves the message
// uncommitted for redelivery. Malformed payloads, replays and business
// rejections are logged and acknowledged.
func NewPaymentCapturedHandler(applier PaymentApplier, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, msg pkgkafka.Message) error {
		var evt PaymentCaptured
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.ErrorContext(ctx, "dropping malformed payment message", "error", err)
			return nil
		}
		if evt.IdempotencyKey == "" {
			evt.IdempotencyKey = redeliveryKey(msg)
		}

		resp, err := applier.Execute(ctx, dto.ApplyPaymentRequest{
			TenantID:         evt.TenantID,
			PlanID:           evt.PlanID,
			Amount:           evt.Amount,
			PaymentDate:      evt.PaymentDate,
			IdempotencyToken: evt.IdempotencyKey,
		})
		switch {
		case err == nil:
			logger.InfoContext(ctx, "payment applied",
				"tenant_id", evt.TenantID,
				"plan_id", evt.PlanID,
				"applied", resp.Applied.StringFixed(2),
				"remaining_balance", resp.RemainingBalance.StringFixed(2),
				"plan_status", resp.PlanStatus,
			)
			return nil
		case errors.Is(err, model.ErrDuplicatePayment):
			logger.InfoContext(ctx, "payment already applied",
				"plan_id", evt.PlanID, "idempotency_key", evt.IdempotencyKey)
			return nil
		case errors.Is(err, model.ErrOverAllocation):
			logger.WarnContext(ctx, "payment exceeds amount owed, needs manual handling",
				"tenant_id", evt.TenantID, "plan_id", evt.PlanID, "error", err)
			return nil
		case model.IsLogical(err):
			logger.ErrorContext(ctx, "payment rejected",
				"tenant_id", evt.TenantID, "plan_id", evt.PlanID, "error", err)
			return nil
		default:
			return fmt.Errorf("apply payment to plan %s: %w", evt.PlanID, err)
		}
	}
}

// redeliveryKey identifies a message without an idempotency key: by its event
// id header when present, otherwise by its position in the log. Either is
// stable across redeliveries of the same record.
func redeliveryKey(msg pkgkafka.Message) string {
	if id := msg.Headers[events.HeaderEventID]; id != "" {
		return id
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}
