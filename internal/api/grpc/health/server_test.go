package health

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufferSize = 1 << 20

// startServer serves s over an in-memory listener and returns a connected client.
func startServer(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(bufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	go func() {
		served <- s.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()

		cancel()
		require.NoError(t, <-served)
	})

	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)

	return resp.GetStatus()
}

// TestServer_StatusFollowsPollLoop verifies SetServing flips both the named and overall status.
func TestServer_StatusFollowsPollLoop(t *testing.T) {
	t.Parallel()

	s := New()
	client := startServer(t, s)

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	s.SetServing(true)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	s.SetServing(false)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

// TestServer_UnknownService verifies unknown service names are rejected.
func TestServer_UnknownService(t *testing.T) {
	t.Parallel()

	client := startServer(t, New())

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other"})
	require.Error(t, err)
}
