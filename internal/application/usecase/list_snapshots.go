package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
)

// ListSnapshotsUseCase lists the settlement snapshots of a plan.
type ListSnapshotsUseCase struct {
	plans     port.PlanReader
	snapshots port.SnapshotReader
}

// NewListSnapshotsUseCase wires dependencies.
func NewListSnapshotsUseCase(plans port.PlanReader, snapshots port.SnapshotReader) *ListSnapshotsUseCase {
	return &ListSnapshotsUseCase{plans: plans, snapshots: snapshots}
}

// Execute returns the plan's snapshots oldest first. The plan lookup scopes
// the request to the caller's tenant.
func (uc *ListSnapshotsUseCase) Execute(
	ctx context.Context,
	req dto.ListSnapshotsRequest,
) (dto.ListSnapshotsResponse, error) {
	if _, err := uc.plans.FindByID(ctx, req.TenantID, req.PlanID); err != nil {
		return dto.ListSnapshotsResponse{}, fmt.Errorf("find plan: %w", err)
	}

	snaps, err := uc.snapshots.ListByPlan(ctx, req.PlanID)
	if err != nil {
		return dto.ListSnapshotsResponse{}, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]dto.SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotResponse(s))
	}
	return dto.ListSnapshotsResponse{Snapshots: out}, nil
}

// VerifySnapshotsUseCase recomputes snapshot hashes to detect tampering.
type VerifySnapshotsUseCase struct {
	plans     port.PlanReader
	snapshots port.SnapshotReader
	builder   *service.SnapshotBuilder
}

// NewVerifySnapshotsUseCase wires dependencies.
func NewVerifySnapshotsUseCase(
	plans port.PlanReader,
	snapshots port.SnapshotReader,
	builder *service.SnapshotBuilder,
) *VerifySnapshotsUseCase {
	return &VerifySnapshotsUseCase{plans: plans, snapshots: snapshots, builder: builder}
}

// Execute checks every stored snapshot of the plan against its content hash.
func (uc *VerifySnapshotsUseCase) Execute(
	ctx context.Context,
	req dto.VerifySnapshotsRequest,
) (dto.VerifySnapshotsResponse, error) {
	if _, err := uc.plans.FindByID(ctx, req.TenantID, req.PlanID); err != nil {
		return dto.VerifySnapshotsResponse{}, fmt.Errorf("find plan: %w", err)
	}

	snaps, err := uc.snapshots.ListByPlan(ctx, req.PlanID)
	if err != nil {
		return dto.VerifySnapshotsResponse{}, fmt.Errorf("list snapshots: %w", err)
	}

	resp := dto.VerifySnapshotsResponse{PlanID: req.PlanID, Checked: len(snaps)}
	for _, s := range snaps {
		if !uc.builder.Verify(s) {
			resp.Mismatched = append(resp.Mismatched, s.ID())
		}
	}
	resp.Valid = len(resp.Mismatched) == 0
	return resp, nil
}
