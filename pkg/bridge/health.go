package bridge

import (
	"context"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer reports the bridge's feed state to gRPC health probes.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	bridge    *Bridge
	startTime time.Time
}

func NewHealthServer(b *Bridge) *HealthServer {
	return &HealthServer{
		bridge:    b,
		startTime: time.Now(),
	}
}

func (s *HealthServer) Check(_ context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if !s.bridge.Healthy() {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		}, nil
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}
