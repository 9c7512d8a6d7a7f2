package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/bibbank/bnpl/pkg/auth"
	"github.com/bibbank/bnpl/pkg/tlsutil"
)

// ServerConfig controls transport security and reflection.
type ServerConfig struct {
	TLSCertFile     string
	TLSKeyFile      string
	// TLSClientCAFile turns on mutual TLS.
	TLSClientCAFile string
	Reflection      bool
	// RateLimitRPS caps calls per tenant per second; 0 disables it.
	RateLimitRPS    int
	RateLimitBurst  int
}

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Server wraps a gRPC server with the BNPL handler registered.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates and configures the gRPC server.
func NewServer(cfg ServerConfig, handler *BnplHandler, jwtService *auth.JWTService, logger *slog.Logger) (*Server, error) {
	// Health checks are reachable without a token.
	interceptors := []grpc.UnaryServerInterceptor{
		LoggingInterceptor(logger),
		auth.UnaryAuthInterceptor(jwtService, []string{
			healthCheckMethod,
			"/grpc.health.v1.Health/Watch",
		}),
	}
	if cfg.RateLimitRPS > 0 {
		interceptors = append(interceptors, NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).UnaryInterceptor())
		logger.Info("gRPC tenant rate limit enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := tlsutil.ServerCredentials(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("load gRPC TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", cfg.TLSCertFile, "mtls", cfg.TLSClientCAFile != "")
	} else {
		logger.Warn("gRPC TLS not configured, running without TLS")
	}

	gs := grpc.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(gs)
	}

	RegisterBnplServiceServer(gs, handler)

	return &Server{
		gs:     gs,
		health: healthSrv,
		logger: logger,
	}, nil
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.gs.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}
