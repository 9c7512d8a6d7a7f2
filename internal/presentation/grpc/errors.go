package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// toStatus maps a use case error onto a gRPC status. Errors that are already
// statuses pass through unchanged. Unclassified failures are reported
// without detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codeFor(err)
	if code == codes.Internal && !model.IsFatal(err) {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case model.IsFatal(err):
		return codes.Internal
	case errors.Is(err, model.ErrInvalidPlanParameters),
		errors.Is(err, model.ErrInvalidPaymentAmount),
		errors.Is(err, model.ErrAccrualWindowInvalid):
		return codes.InvalidArgument
	case errors.Is(err, model.ErrOverAllocation),
		errors.Is(err, model.ErrPlanNotPayable),
		errors.Is(err, valueobject.ErrInvalidStatusTransition):
		return codes.FailedPrecondition
	case errors.Is(err, model.ErrConcurrentModification):
		return codes.Aborted
	case errors.Is(err, model.ErrDuplicatePayment):
		return codes.AlreadyExists
	case errors.Is(err, model.ErrPlanNotFound),
		errors.Is(err, model.ErrPlanTypeNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
