package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrRemote/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// RateLimitUnary returns a unary server interceptor that rejects lookups once
// l has been exhausted. Each lookup may fan out into several remote calls, so
// rejecting early keeps the remote service from being flooded by one caller.
func RateLimitUnary(l *ratelimit.Limiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !l.Allow() {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}
