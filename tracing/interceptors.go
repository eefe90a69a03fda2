// Package tracing provides OpenTelemetry spans for outbound repository calls
// and for the lookup gRPC server. It is entirely optional: tracing is only
// active when a [TracingConfig] is wired in.
package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/Keksclan/goRawrRemote/failure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"
)

// Span attributes describing an entity lookup.
const (
	AttrIDs             = attribute.Key("rawr.ids")
	AttrFound           = attribute.Key("rawr.found")
	AttrMissing         = attribute.Key("rawr.missing")
	AttrRejected        = attribute.Key("rawr.rejected")
	AttrDegraded        = attribute.Key("rawr.degraded")
	AttrFailureCategory = attribute.Key("rawr.failure.category")
)

// TracingConfig holds the OpenTelemetry configuration shared by the client
// and server instrumentation.
type TracingConfig struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// Propagators extracts and injects trace context from/into carriers.
	// When nil the global otel.GetTextMapPropagator() is used.
	Propagators propagation.TextMapPropagator
}

func (c *TracingConfig) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/goRawrRemote/tracing")
}

func (c *TracingConfig) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Batch is implemented by lookup requests.
type Batch interface {
	// IDCount returns how many entity IDs the caller asked for.
	IDCount() int
}

// Outcome is implemented by lookup responses.
type Outcome interface {
	Counts() (found, missing, rejected int)
	// DegradedMessage is empty unless the remote service answered with a
	// recoverable error.
	DegradedMessage() string
}

// categorized is implemented by errors that carry a failure category, such
// as the status errors returned by the lookup service.
type categorized interface {
	Category() failure.Category
}

// UnaryServerInterceptor returns a [grpc.UnaryServerInterceptor] that opens
// a server span per lookup. The span carries the requested ID count, the
// lookup outcome and, on failure, the failure category. If cfg is nil the
// interceptor is a passthrough.
func UnaryServerInterceptor(cfg *TracingConfig) grpc.UnaryServerInterceptor {
	if cfg == nil {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = cfg.propagators().Extract(ctx, incoming(ctx))

		service, method := splitFullMethod(info.FullMethod)
		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		}
		if b, ok := req.(Batch); ok {
			attrs = append(attrs, AttrIDs.Int(b.IDCount()))
		}

		ctx, span := cfg.tracer().Start(ctx, info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		resp, err := handler(ctx, req)
		if err == nil {
			recordOutcome(span, resp)
		}
		recordStatus(span, err)
		return resp, err
	}
}

func recordOutcome(span trace.Span, resp any) {
	o, ok := resp.(Outcome)
	if !ok {
		return
	}
	found, missing, rejected := o.Counts()
	span.SetAttributes(
		AttrFound.Int(found),
		AttrMissing.Int(missing),
		AttrRejected.Int(rejected),
	)
	if msg := o.DegradedMessage(); msg != "" {
		span.SetAttributes(AttrDegraded.Bool(true))
		span.AddEvent("degraded", trace.WithAttributes(attribute.String("message", msg)))
	}
}

// recordStatus sets the span status from err's gRPC code. A failure
// category, when err carries one, is recorded next to it.
func recordStatus(span trace.Span, err error) {
	st, _ := grpcStatus.FromError(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	var c categorized
	if errors.As(err, &c) {
		span.SetAttributes(AttrFailureCategory.String(c.Category().String()))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, st.Message())
}

// mdCarrier reads and writes trace headers in gRPC metadata.
type mdCarrier metadata.MD

func incoming(ctx context.Context) mdCarrier {
	md, _ := metadata.FromIncomingContext(ctx)
	if md == nil {
		md = metadata.MD{}
	}
	return mdCarrier(md)
}

func (c mdCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c mdCarrier) Set(key, value string) { metadata.MD(c).Set(key, value) }

func (c mdCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// splitFullMethod splits "/rawr.Entities/FindByIDs" into its service and
// method.
func splitFullMethod(fullMethod string) (service, method string) {
	service, method, _ = strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	return service, method
}
