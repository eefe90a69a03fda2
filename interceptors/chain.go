// Package interceptors holds the unary server interceptors installed in
// front of the lookup service.
package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnary composes multiple unary interceptors into a single one.
// Interceptors execute in the order they appear in the slice; nil entries
// are skipped.
func ChainUnary(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	list := make([]grpc.UnaryServerInterceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			list = append(list, ic)
		}
	}

	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		curr := handler
		for i := len(list) - 1; i > 0; i-- {
			next := curr
			ic := list[i]
			curr = func(ctx context.Context, req any) (any, error) {
				return ic(ctx, req, info, next)
			}
		}
		return list[0](ctx, req, info, curr)
	}
}
