package contextx

import (
	"context"
	"log/slog"
)

// RequestIDKey is the log attribute under which the request ID of a lookup
// is recorded.
const RequestIDKey = "request_id"

// WithRequestID returns ctx carrying id. The lookup server assigns one per
// call; every remote request and failure report logged under ctx carries it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// AppendRequestID appends the request ID of ctx to attrs when there is one.
func AppendRequestID(ctx context.Context, attrs []slog.Attr) []slog.Attr {
	if id := RequestIDFromContext(ctx); id != "" {
		return append(attrs, slog.String(RequestIDKey, id))
	}
	return attrs
}
