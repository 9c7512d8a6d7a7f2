package grpc

// proto.go describes bnpl.v1.BnplService by hand. Messages travel with the
// JSON codec, so the application DTOs double as wire messages.

import (
	"context"

	grpclib "google.golang.org/grpc"

	"github.com/bibbank/bnpl/internal/application/dto"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "bnpl.v1.BnplService"

// ListPlanTypesRequest has no fields; the catalog is shared by all tenants.
type ListPlanTypesRequest struct{}

// PlanTransitionRequest names the plan for Activate, Cancel, Default and Refund.
type PlanTransitionRequest struct {
	PlanID string `json:"plan_id"`
}

// BnplServiceServer is the server API for BnplService.
type BnplServiceServer interface {
	CreatePlanType(context.Context, *dto.CreatePlanTypeRequest) (*dto.PlanTypeResponse, error)
	ListPlanTypes(context.Context, *ListPlanTypesRequest) (*dto.ListPlanTypesResponse, error)
	QuotePlan(context.Context, *dto.QuotePlanRequest) (*dto.QuoteResponse, error)
	CreatePlan(context.Context, *dto.CreatePlanRequest) (*dto.PlanResponse, error)
	ActivatePlan(context.Context, *PlanTransitionRequest) (*dto.PlanResponse, error)
	CancelPlan(context.Context, *PlanTransitionRequest) (*dto.PlanResponse, error)
	DefaultPlan(context.Context, *PlanTransitionRequest) (*dto.PlanResponse, error)
	RefundPlan(context.Context, *PlanTransitionRequest) (*dto.PlanResponse, error)
	ApplyPayment(context.Context, *dto.ApplyPaymentRequest) (*dto.PaymentResponse, error)
	GetPlan(context.Context, *dto.GetPlanRequest) (*dto.PlanResponse, error)
	AccrueLateInterest(context.Context, *dto.AccrueLateInterestRequest) (*dto.AccrualResponse, error)
	ListSnapshots(context.Context, *dto.ListSnapshotsRequest) (*dto.ListSnapshotsResponse, error)
	VerifySnapshots(context.Context, *dto.VerifySnapshotsRequest) (*dto.VerifySnapshotsResponse, error)
}

// RegisterBnplServiceServer registers srv with the gRPC server.
func RegisterBnplServiceServer(s grpclib.ServiceRegistrar, srv BnplServiceServer) {
	s.RegisterService(&bnplServiceDesc, srv)
}

var bnplServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BnplServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unary("CreatePlanType", func(s BnplServiceServer, ctx context.Context, in *dto.CreatePlanTypeRequest) (any, error) {
			return s.CreatePlanType(ctx, in)
		}),
		unary("ListPlanTypes", func(s BnplServiceServer, ctx context.Context, in *ListPlanTypesRequest) (any, error) {
			return s.ListPlanTypes(ctx, in)
		}),
		unary("QuotePlan", func(s BnplServiceServer, ctx context.Context, in *dto.QuotePlanRequest) (any, error) {
			return s.QuotePlan(ctx, in)
		}),
		unary("CreatePlan", func(s BnplServiceServer, ctx context.Context, in *dto.CreatePlanRequest) (any, error) {
			return s.CreatePlan(ctx, in)
		}),
		unary("ActivatePlan", func(s BnplServiceServer, ctx context.Context, in *PlanTransitionRequest) (any, error) {
			return s.ActivatePlan(ctx, in)
		}),
		unary("CancelPlan", func(s BnplServiceServer, ctx context.Context, in *PlanTransitionRequest) (any, error) {
			return s.CancelPlan(ctx, in)
		}),
		unary("DefaultPlan", func(s BnplServiceServer, ctx context.Context, in *PlanTransitionRequest) (any, error) {
			return s.DefaultPlan(ctx, in)
		}),
		unary("RefundPlan", func(s BnplServiceServer, ctx context.Context, in *PlanTransitionRequest) (any, error) {
			return s.RefundPlan(ctx, in)
		}),
		unary("ApplyPayment", func(s BnplServiceServer, ctx context.Context, in *dto.ApplyPaymentRequest) (any, error) {
			return s.ApplyPayment(ctx, in)
		}),
		unary("GetPlan", func(s BnplServiceServer, ctx context.Context, in *dto.GetPlanRequest) (any, error) {
			return s.GetPlan(ctx, in)
		}),
		unary("AccrueLateInterest", func(s BnplServiceServer, ctx context.Context, in *dto.AccrueLateInterestRequest) (any, error) {
			return s.AccrueLateInterest(ctx, in)
		}),
		unary("ListSnapshots", func(s BnplServiceServer, ctx context.Context, in *dto.ListSnapshotsRequest) (any, error) {
			return s.ListSnapshots(ctx, in)
		}),
		unary("VerifySnapshots", func(s BnplServiceServer, ctx context.Context, in *dto.VerifySnapshotsRequest) (any, error) {
			return s.VerifySnapshots(ctx, in)
		}),
	},
	Streams: []grpclib.StreamDesc{},
}

// unary builds the method descriptor for one request/response call, routing
// through the server's interceptor chain the way generated code does.
func unary[Req any](method string, call func(BnplServiceServer, context.Context, *Req) (any, error)) grpclib.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpclib.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BnplServiceServer), ctx, in)
			}
			info := &grpclib.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BnplServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
