package grpc

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/logger"
)

// SnapshotHealthService is the health service name that turns SERVING once a
// snapshot is available
const SnapshotHealthService = "reconciler.snapshots"

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	healthServer := health.NewServer()
	healthServer.SetServingStatus(SnapshotHealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		config: cfg,
		logger: logger,
		health: healthServer,
	}
}

// PublishSnapshot marks the snapshot service as serving. It lets the server
// act as a snapshot publisher next to the redis notifier.
func (s *Server) PublishSnapshot(_ context.Context, summary entity.SnapshotSummary) error {
	s.health.SetServingStatus(SnapshotHealthService, healthpb.HealthCheckResponse_SERVING)
	s.logger.Debug("Snapshot health set to serving", zap.String("run_id", summary.RunID.String()))
	return nil
}

// HealthServer exposes the health service, mainly for tests
func (s *Server) HealthServer() healthpb.HealthServer {
	return s.health
}

func (s *Server) Start() error {
	addr := s.config.Server.GRPC.Address()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = grpc.NewServer(
		grpc.UnaryInterceptor(logger.NewGrpcUnaryServerInterceptor(s.logger)),
		grpc.StreamInterceptor(logger.NewGrpcStreamServerInterceptor(s.logger)),
	)
	healthpb.RegisterHealthServer(s.server, s.health)

	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.server != nil {
		s.server.GracefulStop()
	}
	return nil
}
