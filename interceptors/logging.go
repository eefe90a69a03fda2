package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Keksclan/goRawrRemote/contextx"
	"github.com/Keksclan/goRawrRemote/failure"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs one record per call with its gRPC code and duration.
// Calls ending in Internal or Unknown are logged at Error, other failures at
// Warn and successes at Info. Failed lookups also log their failure category.
func LoggingUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown:
			level = slog.LevelError
		default:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
		}
		attrs = contextx.AppendRequestID(ctx, attrs)
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			var c interface{ Category() failure.Category }
			if errors.As(err, &c) {
				attrs = append(attrs, slog.String("category", c.Category().String()))
			}
		}
		logger.LogAttrs(ctx, level, "rpc finished", attrs...)
		return resp, err
	}
}
