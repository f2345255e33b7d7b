package router

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/journal-exchange/internal/api/grpc/middleware"
	"github.com/dtroode/journal-exchange/internal/logger"
)

// Router builds the operational gRPC server.
type Router struct {
	health *health.Server
	logger *logger.Logger
}

// New creates a Router serving statuses from healthServer.
func New(healthServer *health.Server, logger *logger.Logger) *Router {
	return &Router{health: healthServer, logger: logger}
}

// Register returns a gRPC server with the health and reflection services
// behind recovery and request logging.
func (r *Router) Register() *grpc.Server {
	mw := middleware.NewLogging(r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			mw.UnaryRecovery(),
			mw.UnaryLogging(),
		),
	)
	healthpb.RegisterHealthServer(s, r.health)
	reflection.Register(s)

	return s
}
