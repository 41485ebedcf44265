package core

import (
	"context"

	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer reports store reachability to gRPC health probes. Probes
// go through ListMachines, so they also count as reads for the
// availability sweep.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	engine Service
}

func NewHealthServer(engine Service) *HealthServer {
	return &HealthServer{engine: engine}
}

func (s *HealthServer) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if _, err := s.engine.ListMachines(ctx); err != nil {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		}, nil
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}
