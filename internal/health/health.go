// Package health exposes the vision feed's liveness as a standard gRPC
// health service.
package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/sslbridge/internal/monitoring"
)

// VisionService is the health service name reported for the vision feed.
const VisionService = "sslbridge.vision"

// FeedHealth reports SERVING for VisionService while datagrams arrive and
// NOT_SERVING before the first one and after each idle timeout. The empty
// service name reports the process itself and stays SERVING until Shutdown.
// It implements vision.FeedObserver.
type FeedHealth struct {
	srv  *grpchealth.Server
	logf func(format string, v ...interface{})
}

// NewFeedHealth creates a FeedHealth with the feed NOT_SERVING.
func NewFeedHealth() *FeedHealth {
	srv := grpchealth.NewServer()
	srv.SetServingStatus(VisionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &FeedHealth{srv: srv, logf: monitoring.Prefixed("health")}
}

func (h *FeedHealth) FeedActive() {
	h.srv.SetServingStatus(VisionService, healthpb.HealthCheckResponse_SERVING)
	h.logf("%s SERVING", VisionService)
}

func (h *FeedHealth) FeedIdle(idleFor time.Duration) {
	h.srv.SetServingStatus(VisionService, healthpb.HealthCheckResponse_NOT_SERVING)
	h.logf("%s NOT_SERVING (idle %v)", VisionService, idleFor.Round(time.Millisecond))
}

// Status returns the current status of service.
func (h *FeedHealth) Status(service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Register adds the health service to s.
func (h *FeedHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Shutdown sets every service NOT_SERVING and ignores later updates.
func (h *FeedHealth) Shutdown() {
	h.srv.Shutdown()
}

// Serve runs a gRPC server carrying only the health service on lis until ctx
// is cancelled, then stops it gracefully.
func (h *FeedHealth) Serve(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	h.Register(s)

	errc := make(chan error, 1)
	go func() {
		h.logf("gRPC health listening on %s", lis.Addr())
		errc <- s.Serve(lis)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
		h.Shutdown()
		s.GracefulStop()
		<-errc
		h.logf("gRPC health server stopped")
		return nil
	}
}
