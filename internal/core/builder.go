package core

import "google.golang.org/grpc"

// BuildServerOptions translates an ordered interceptor list into
// grpc.ServerOption values that can be passed to grpc.NewServer. This keeps
// the wiring logic isolated from the public API surface.
func BuildServerOptions(
	unary *Ordered[grpc.UnaryServerInterceptor],
	chainUnary func(...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor,
	extra ...grpc.ServerOption,
) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if u := chainUnary(unary.Build()...); u != nil {
		opts = append(opts, grpc.UnaryInterceptor(u))
	}

	return append(opts, extra...)
}
