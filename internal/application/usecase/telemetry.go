package usecase

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bnpl/internal/domain/model"
)

const instrumentationName = "github.com/bibbank/bnpl/internal/application/usecase"

// ledgerInstruments are the business counters exported on /metrics.
type ledgerInstruments struct {
	paymentsApplied  metric.Int64Counter
	amountApplied    metric.Float64Counter
	interestAccrued  metric.Float64Counter
	snapshotsWritten metric.Int64Counter
	fatalErrors      metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	instruments     ledgerInstruments
)

// metrics lazily creates the counters on the global meter provider. Creation
// errors leave a nil counter, which record* helpers skip.
func metrics() *ledgerInstruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		instruments.paymentsApplied, _ = meter.Int64Counter("bnpl_payments_applied_total",
			metric.WithDescription("Payments allocated to installment plans"))
		instruments.amountApplied, _ = meter.Float64Counter("bnpl_payment_amount_applied_total",
			metric.WithDescription("Money applied to installment buckets"))
		instruments.interestAccrued, _ = meter.Float64Counter("bnpl_late_interest_accrued_total",
			metric.WithDescription("Late interest charged to overdue installments"))
		instruments.snapshotsWritten, _ = meter.Int64Counter("bnpl_snapshots_written_total",
			metric.WithDescription("Settlement snapshots appended"))
		instruments.fatalErrors, _ = meter.Int64Counter("bnpl_invariant_violations_total",
			metric.WithDescription("Plans halted by a ledger invariant violation"))
	})
	return &instruments
}

func addInt(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

func addFloat(ctx context.Context, c metric.Float64Counter, v float64, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, v, metric.WithAttributes(attrs...))
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// reportFatal escalates an invariant violation to the operator channel.
// Other errors pass through untouched.
func reportFatal(ctx context.Context, logger *slog.Logger, tenantID, planID string, err error) {
	if !model.IsFatal(err) {
		return
	}
	addInt(ctx, metrics().fatalErrors, 1)
	logger.ErrorContext(ctx, "ledger invariant violated, plan halted",
		"operator_alert", true,
		"tenant_id", tenantID,
		"plan_id", planID,
		"error", err,
	)
}
