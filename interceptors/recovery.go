package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/Keksclan/goRawrRemote/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryUnary returns a unary server interceptor that recovers from panics,
// logs them with their stack and returns an Internal gRPC error instead of
// crashing the process. A nil logger uses slog.Default().
func RecoveryUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "panic in handler",
					"method", info.FullMethod,
					"panic", r,
					"request_id", contextx.RequestIDFromContext(ctx),
					"stack", string(debug.Stack()),
				)
				resp = nil
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
