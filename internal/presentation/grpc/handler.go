package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/application/usecase"
	"github.com/bibbank/bnpl/pkg/auth"
)

// Role sets per operation. Admin may call everything.
var (
	catalogWriters  = []string{auth.RoleAdmin}
	catalogReaders  = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleMerchant, auth.RoleAPIClient}
	planCreators    = []string{auth.RoleAdmin, auth.RoleMerchant, auth.RoleAPIClient}
	planLifecycle   = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleMerchant}
	planCollections = []string{auth.RoleAdmin, auth.RoleOperator}
	payers          = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleMerchant, auth.RoleAPIClient}
	planReaders     = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleMerchant, auth.RoleAPIClient, auth.RoleAuditor}
	accruers        = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleScheduler}
	auditors        = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor}
)

// UseCases bundles the application operations the handler exposes.
type UseCases struct {
	CreatePlanType *usecase.CreatePlanTypeUseCase
	ListPlanTypes  *usecase.ListPlanTypesUseCase
	QuotePlan      *usecase.QuotePlanUseCase
	CreatePlan     *usecase.CreatePlanUseCase
	TransitionPlan *usecase.TransitionPlanUseCase
	ApplyPayment   *usecase.ApplyPaymentUseCase
	GetPlan        *usecase.GetPlanUseCase
	AccrueInterest *usecase.AccrueLateInterestUseCase
	ListSnapshots  *usecase.ListSnapshotsUseCase
	VerifySnapshots *usecase.VerifySnapshotsUseCase
}

// BnplHandler is the gRPC handler for installment plan operations. The
// tenant always comes from the caller's token; any tenant_id in the request
// body is ignored.
type BnplHandler struct {
	uc UseCases
	logger *slog.Logger
}

var _ BnplServiceServer = (*BnplHandler)(nil)

// NewBnplHandler creates a handler over the given use cases.
func NewBnplHandler(uc UseCases, logger *slog.Logger) *BnplHandler {
	return &BnplHandler{uc: uc, logger: logger}
}

// authorize checks the caller's role and returns its tenant.
func authorize(ctx context.Context, roles []string) (string, error) {
	if err := auth.CheckRole(ctx, roles...); err != nil {
		return "", err
	}
	return auth.TenantFromContext(ctx)
}

func (h *BnplHandler) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		h.logger.ErrorContext(ctx, "request failed", "method", method, "error", err)
	} else {
		h.logger.DebugContext(ctx, "request rejected", "method", method, "error", err)
	}
	return st
}

// CreatePlanType adds a plan type to the catalog.
func (h *BnplHandler) CreatePlanType(ctx context.Context, req *dto.CreatePlanTypeRequest) (*dto.PlanTypeResponse, error) {
	if err := auth.CheckRole(ctx, catalogWriters...); err != nil {
		return nil, err
	}
	resp, err := h.uc.CreatePlanType.Execute(ctx, *req)
	if err != nil {
		return nil, h.fail(ctx, "CreatePlanType", err)
	}
	return &resp, nil
}

// ListPlanTypes returns the catalog.
func (h *BnplHandler) ListPlanTypes(ctx context.Context, _ *ListPlanTypesRequest) (*dto.ListPlanTypesResponse, error) {
	if err := auth.CheckRole(ctx, catalogReaders...); err != nil {
		return nil, err
	}
	resp, err := h.uc.ListPlanTypes.Execute(ctx)
	if err != nil {
		return nil, h.fail(ctx, "ListPlanTypes", err)
	}
	return &resp, nil
}

// QuotePlan prices a plan without creating it.
func (h *BnplHandler) QuotePlan(ctx context.Context, req *dto.QuotePlanRequest) (*dto.QuoteResponse, error) {
	if err := auth.CheckRole(ctx, catalogReaders...); err != nil {
		return nil, err
	}
	resp, err := h.uc.QuotePlan.Execute(ctx, *req)
	if err != nil {
		return nil, h.fail(ctx, "QuotePlan", err)
	}
	return &resp, nil
}

// CreatePlan finances an order.
func (h *BnplHandler) CreatePlan(ctx context.Context, req *dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	tenantID, err := authorize(ctx, planCreators)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.CreatePlan.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "CreatePlan", err)
	}
	return &resp, nil
}

// ActivatePlan moves a requested plan to ACTIVE.
func (h *BnplHandler) ActivatePlan(ctx context.Context, req *PlanTransitionRequest) (*dto.PlanResponse, error) {
	return h.transition(ctx, "ActivatePlan", planLifecycle, req.PlanID, dto.TransitionActivate)
}

// CancelPlan cancels a plan that was never activated.
func (h *BnplHandler) CancelPlan(ctx context.Context, req *PlanTransitionRequest) (*dto.PlanResponse, error) {
	return h.transition(ctx, "CancelPlan", planLifecycle, req.PlanID, dto.TransitionCancel)
}

// DefaultPlan marks an active plan as defaulted.
func (h *BnplHandler) DefaultPlan(ctx context.Context, req *PlanTransitionRequest) (*dto.PlanResponse, error) {
	return h.transition(ctx, "DefaultPlan", planCollections, req.PlanID, dto.TransitionDefault)
}

// RefundPlan closes a plan after the order was refunded.
func (h *BnplHandler) RefundPlan(ctx context.Context, req *PlanTransitionRequest) (*dto.PlanResponse, error) {
	return h.transition(ctx, "RefundPlan", planLifecycle, req.PlanID, dto.TransitionRefund)
}

func (h *BnplHandler) transition(
	ctx context.Context,
	method string,
	roles []string,
	planID string,
	transition dto.PlanTransition,
) (*dto.PlanResponse, error) {
	tenantID, err := authorize(ctx, roles)
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.TransitionPlan.Execute(ctx, dto.TransitionPlanRequest{
		TenantID: tenantID,
		PlanID:   planID,
		Transition: transition,
	})
	if err != nil {
		return nil, h.fail(ctx, method, err)
	}
	return &resp, nil
}

// ApplyPayment runs the allocation cascade for an incoming payment.
func (h *BnplHandler) ApplyPayment(ctx context.Context, req *dto.ApplyPaymentRequest) (*dto.PaymentResponse, error) {
	tenantID, err := authorize(ctx, payers)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.ApplyPayment.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "ApplyPayment", err)
	}
	return &resp, nil
}

// GetPlan returns a plan and its installments.
func (h *BnplHandler) GetPlan(ctx context.Context, req *dto.GetPlanRequest) (*dto.PlanResponse, error) {
	tenantID, err := authorize(ctx, planReaders)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.GetPlan.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "GetPlan", err)
	}
	return &resp, nil
}

// AccrueLateInterest accrues late interest on one plan.
func (h *BnplHandler) AccrueLateInterest(ctx context.Context, req *dto.AccrueLateInterestRequest) (*dto.AccrualResponse, error) {
	tenantID, err := authorize(ctx, accruers)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.AccrueInterest.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "AccrueLateInterest", err)
	}
	return &resp, nil
}

// ListSnapshots returns a plan's settlement snapshots.
func (h *BnplHandler) ListSnapshots(ctx context.Context, req *dto.ListSnapshotsRequest) (*dto.ListSnapshotsResponse, error) {
	tenantID, err := authorize(ctx, auditors)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.ListSnapshots.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "ListSnapshots", err)
	}
	return &resp, nil
}

// VerifySnapshots recomputes the hashes of a plan's snapshots.
func (h *BnplHandler) VerifySnapshots(ctx context.Context, req *dto.VerifySnapshotsRequest) (*dto.VerifySnapshotsResponse, error) {
	tenantID, err := authorize(ctx, auditors)
	if err != nil {
		return nil, err
	}
	in := *req
	in.TenantID = tenantID
	resp, err := h.uc.VerifySnapshots.Execute(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "VerifySnapshots", err)
	}
	return &resp, nil
}
