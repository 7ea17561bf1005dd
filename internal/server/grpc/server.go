// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the process over gRPC as well as HTTP.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dmitrijs2005/eventpass/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service name reported next to the
// overall ("") status.
const ServiceName = "eventpass"

type GRPCServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	srv     *grpc.Server
}

func NewGRPCServer(a string, l logging.Logger) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}

	s.srv = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
	)
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the named service status.
func (s *GRPCServer) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled. Health turns
// NOT_SERVING before the server drains.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(listen)
	}()

	s.SetServing(true)
	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		s.health.Shutdown()
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}
