package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bnpl/pkg/auth"
)

// TenantRateLimiter keeps one token bucket per tenant.
type TenantRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewTenantRateLimiter allows rps calls per second per tenant with bursts of
// up to burst calls.
func NewTenantRateLimiter(rps, burst int) *TenantRateLimiter {
	return &TenantRateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// Allow consumes one token from tenant's bucket.
func (l *TenantRateLimiter) Allow(tenant string) bool {
	l.mu.Lock()
	b, ok := l.buckets[tenant]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[tenant] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// UnaryInterceptor rejects calls over budget with ResourceExhausted. It must
// run after authentication; calls without claims are not limited.
func (l *TenantRateLimiter) UnaryInterceptor() grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		claims, ok := auth.ClaimsFromContext(ctx)
		if ok && !l.Allow(claims.TenantID) {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for tenant %s", claims.TenantID)
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each call with its status code and latency.
// Health checks are logged at debug.
func LoggingInterceptor(logger *slog.Logger) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch {
		case code == codes.Internal || code == codes.Unknown:
			level = slog.LevelError
		case info.FullMethod == healthCheckMethod:
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, "grpc call",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
