package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-relay/internal/logger"
)

// ServiceName is the health service name reported for the poll loop.
const ServiceName = "alarm-relay"

// Server wraps a gRPC server exposing the health service.
type Server struct {
	// grpcServer is the transport.
	grpcServer *grpc.Server
	// health tracks the serving status.
	health *health.Server
}

// New creates a server reporting NOT_SERVING until the first clean cycle.
func New() *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.SetServing(false)

	return s
}

// SetServing updates the status of ServiceName and of the whole server.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis and blocks until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down health server")

		// Watchers are told NOT_SERVING before the connections close.
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		close(done)
	}()

	logger.InfoKV(ctx, "Health server listening", "listen_address", lis.Addr().String())

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Health server stopped")

	return nil
}
