package middleware

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/journal-exchange/internal/logger"
)

// Logging provides the unary interceptors of the operational gRPC server.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// UnaryLogging logs the start and result of every unary call.
func (l *Logging) UnaryLogging() grpc.UnaryServerInterceptor {
	return logging.UnaryServerInterceptor(
		logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
			l.logger.Log(ctx, slog.Level(lvl), "gRPC "+msg, fields...)
		}),
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	)
}

// UnaryRecovery turns handler panics into codes.Internal.
func (l *Logging) UnaryRecovery() grpc.UnaryServerInterceptor {
	return recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
		l.logger.Error("gRPC handler panicked",
			"panic", p)
		return status.Error(codes.Internal, "internal server error")
	}))
}
