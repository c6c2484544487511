package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/sslbridge/internal/monitoring"
)

func muteLogs(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

func TestFeedHealth_Transitions(t *testing.T) {
	muteLogs(t)
	h := NewFeedHealth()

	status := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		s, err := h.Status(service)
		require.NoError(t, err)
		return s
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(VisionService), "no datagrams yet")
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(""))

	h.FeedActive()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(VisionService))

	h.FeedIdle(5 * time.Second)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(VisionService))

	h.FeedActive()
	h.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(VisionService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(""))

	_, err := h.Status("unknown.service")
	assert.Error(t, err)
}

func TestFeedHealth_ServeOverGRPC(t *testing.T) {
	muteLogs(t)
	h := NewFeedHealth()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- h.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		rpcCtx, rpcCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer rpcCancel()
		resp, err := client.Check(rpcCtx, &healthpb.HealthCheckRequest{Service: VisionService})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	h.FeedActive()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
