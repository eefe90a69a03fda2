package interceptors

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/Keksclan/goRawrRemote/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the metadata key read from callers and echoed back.
const RequestIDHeader = "x-request-id"

// newRequestID generates a random hex-encoded request identifier.
func newRequestID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// ensureRequestID returns the context enriched with a request ID. The
// caller's x-request-id is reused when present.
func ensureRequestID(ctx context.Context) context.Context {
	if contextx.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDHeader); len(vals) > 0 && vals[0] != "" {
			return contextx.WithRequestID(ctx, vals[0])
		}
	}
	return contextx.WithRequestID(ctx, newRequestID())
}

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context and sends it back as a response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = ensureRequestID(ctx)
		// Fails outside a real transport stream, e.g. in direct unit calls.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, contextx.RequestIDFromContext(ctx)))
		return handler(ctx, req)
	}
}
