package lookup_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/document"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/lookup"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/ratelimit"
	"github.com/Keksclan/goRawrRemote/retry"
	"github.com/Keksclan/goRawrRemote/tracing"
	"github.com/Keksclan/goRawrRemote/transport"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	bufSize = 1024 * 1024

	idA = "123e4567-e89b-12d3-a456-426614174000"
	idB = "123e4567-e89b-12d3-a456-426614174001"
	idC = "123e4567-e89b-12d3-a456-426614174002"
)

var discard = slog.New(slog.DiscardHandler)

func startServer(t *testing.T, h lookup.Handler, cfg lookup.ServerConfig) *bufconn.Listener {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discard
	}
	lis := bufconn.Listen(bufSize)
	s := lookup.NewServer(h, cfg)
	t.Cleanup(func() { s.Stop() })
	go func() { _ = s.Serve(lis) }()
	return lis
}

func dial(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// factory builds repositories over tr with test defaults.
func factory(tr transport.Transport, opts ...gorawrremote.Option) lookup.Factory {
	return func(_ context.Context, extra ...gorawrremote.Option) (*gorawrremote.Repository, error) {
		base := []gorawrremote.Option{
			gorawrremote.WithBaseURI("https://api.test/v1"),
			gorawrremote.WithResourcePath("/users"),
			gorawrremote.WithUUIDValidation(true),
			gorawrremote.WithRetry(0, 0),
			gorawrremote.WithLogger(discard, false),
			gorawrremote.WithErrorSink(observe.NopSink{}),
		}
		base = append(base, opts...)
		return gorawrremote.New(tr, append(base, extra...)...)
	}
}

func requestedIDs(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return strings.Split(u.Query().Get(gorawrremote.DefaultIDsParam), ",")
}

// known answers with entities for idA and idB only.
var known = transport.Func(func(_ context.Context, _, u string, _ any, _ http.Header) (*document.Document, error) {
	var out []document.Entity
	for _, id := range requestedIDs(u) {
		if id == idA || id == idB {
			out = append(out, document.Entity{ID: id, Type: "users"})
		}
	}
	return document.New(out...), nil
})

func TestRegisterService(t *testing.T) {
	s := grpc.NewServer()
	lookup.Register(s, lookup.NewService(factory(known)))
	si, ok := s.GetServiceInfo()["rawr.Entities"]
	if !ok {
		t.Fatal("rawr.Entities service not registered")
	}
	if len(si.Methods) != 1 || si.Methods[0].Name != "FindByIDs" {
		t.Fatalf("unexpected methods %+v", si.Methods)
	}
}

func TestFindByIDsViaBufconn(t *testing.T) {
	lis := startServer(t, lookup.NewService(factory(known)), lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	resp, err := client.FindByIDs(t.Context(), []string{idB, "not-a-uuid", idA, idC, idB})
	if err != nil {
		t.Fatalf("FindByIDs RPC failed: %v", err)
	}

	var got []string
	for _, e := range resp.Entities {
		got = append(got, e.ID)
	}
	if !slices.Equal(got, []string{idB, idA}) {
		t.Fatalf("entities = %v, want request order [%s %s]", got, idB, idA)
	}
	if !slices.Equal(resp.Missing, []string{idC}) {
		t.Fatalf("missing = %v", resp.Missing)
	}
	if !slices.Equal(resp.Rejected, []string{"not-a-uuid"}) {
		t.Fatalf("rejected = %v", resp.Rejected)
	}
}

func TestFindByIDs_FailureBecomesStatus(t *testing.T) {
	invalid := transport.Func(func(context.Context, string, string, any, http.Header) (*document.Document, error) {
		return document.WithErrors(422, map[string]any{"email": []any{"required"}}), nil
	})
	lis := startServer(t, lookup.NewService(factory(invalid)), lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	_, err := client.FindByIDs(t.Context(), []string{idA})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	errs := lookup.ErrorsFrom(err)
	if len(errs) != 1 || errs[0].Detail != "required" {
		t.Fatalf("unexpected details %+v", errs)
	}
	if errs[0].Source == nil || errs[0].Source.Pointer != "/data/attributes/email" {
		t.Fatalf("unexpected source %+v", errs[0].Source)
	}
}

func TestFindByIDs_ForwardsCallerToken(t *testing.T) {
	var seen atomic.Value
	tr := transport.Func(func(_ context.Context, _, u string, _ any, h http.Header) (*document.Document, error) {
		seen.Store(h.Get("Authorization"))
		return document.New(), nil
	})
	svc := lookup.NewService(factory(tr, gorawrremote.WithTokenProvider(auth.Incoming{})))
	lis := startServer(t, svc, lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	ctx := metadata.AppendToOutgoingContext(t.Context(), "authorization", "Bearer caller-token")
	if _, err := client.FindByIDs(ctx, []string{idA}); err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if got, _ := seen.Load().(string); got != "Bearer caller-token" {
		t.Fatalf("upstream Authorization = %q", got)
	}

	_, err := client.FindByIDs(t.Context(), []string{idA})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without caller token, got %v", err)
	}
}

type flaky struct {
	calls atomic.Int32
}

func (f *flaky) FindByIDs(_ context.Context, req *lookup.FindRequest) (*lookup.FindResponse, error) {
	if f.calls.Add(1) == 1 {
		return nil, status.Error(codes.Unavailable, "warming up")
	}
	return &lookup.FindResponse{Missing: req.IDs}, nil
}

func TestClientRetriesUnavailable(t *testing.T) {
	h := &flaky{}
	lis := startServer(t, h, lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis)).WithRetry(retry.Config{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		RetryCodes:  []codes.Code{codes.Unavailable},
	})

	resp, err := client.FindByIDs(t.Context(), []string{idA})
	if err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if h.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", h.calls.Load())
	}
	if !slices.Equal(resp.Missing, []string{idA}) {
		t.Fatalf("unexpected response %+v", resp)
	}
}

type panicking struct{}

func (panicking) FindByIDs(context.Context, *lookup.FindRequest) (*lookup.FindResponse, error) {
	panic("boom")
}

func TestServerRecoversPanics(t *testing.T) {
	lis := startServer(t, panicking{}, lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	_, err := client.FindByIDs(t.Context(), []string{idA})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestServerRateLimit(t *testing.T) {
	lis := startServer(t, lookup.NewService(factory(known)), lookup.ServerConfig{
		Limiter: ratelimit.NewLimiter(0.001, 1),
	})
	client := lookup.NewClient(dial(t, lis)).WithRetry(retry.Config{MaxAttempts: 1})

	if _, err := client.FindByIDs(t.Context(), []string{idA}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := client.FindByIDs(t.Context(), []string{idA})
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
}

func TestServerSetsRequestID(t *testing.T) {
	lis := startServer(t, lookup.NewService(factory(known)), lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	var header metadata.MD
	if _, err := client.FindByIDs(t.Context(), []string{idA}, grpc.Header(&header)); err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if ids := header.Get("x-request-id"); len(ids) != 1 || ids[0] == "" {
		t.Fatalf("expected x-request-id header, got %v", header)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		category failure.Category
		want     codes.Code
	}{
		{failure.NotFound, codes.NotFound},
		{failure.AuthError, codes.Unauthenticated},
		{failure.RateLimited, codes.ResourceExhausted},
		{failure.ServerError, codes.Unavailable},
		{failure.ConnectionError, codes.Unavailable},
		{failure.Timeout, codes.DeadlineExceeded},
		{failure.ClientError, codes.InvalidArgument},
		{failure.Unknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := lookup.Code(tt.category); got != tt.want {
			t.Errorf("Code(%s) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

// rebuilding answers every lookup with a recoverable upstream error.
var rebuilding = transport.Func(func(context.Context, string, string, any, http.Header) (*document.Document, error) {
	return document.WithErrors(503, []any{map[string]any{"status": "503", "detail": "index is rebuilding"}}), nil
})

func TestFindByIDs_DegradedReachesCaller(t *testing.T) {
	svc := lookup.NewService(factory(rebuilding, gorawrremote.WithRecoverablePatterns("index is rebuilding")))
	lis := startServer(t, svc, lookup.ServerConfig{})
	client := lookup.NewClient(dial(t, lis))

	resp, err := client.FindByIDs(t.Context(), []string{idA})
	if err != nil {
		t.Fatalf("a degraded lookup must not fail: %v", err)
	}
	if resp.Degraded != "index is rebuilding" {
		t.Fatalf("degraded = %q", resp.Degraded)
	}
	if len(resp.Entities) != 0 || !slices.Equal(resp.Missing, []string{idA}) {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestServiceFailureKeepsCategory(t *testing.T) {
	down := transport.Func(func(context.Context, string, string, any, http.Header) (*document.Document, error) {
		return document.WithErrors(500, []any{map[string]any{"status": "500", "detail": "boom"}}), nil
	})

	_, err := lookup.NewService(factory(down)).FindByIDs(t.Context(), &lookup.FindRequest{IDs: []string{idA}})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	var c interface{ Category() failure.Category }
	if !errors.As(err, &c) || c.Category() != failure.ServerError {
		t.Fatalf("expected the server_error category on %v", err)
	}
	if errs := lookup.ErrorsFrom(err); len(errs) != 1 || errs[0].Detail != "boom" {
		t.Fatalf("unexpected details %+v", errs)
	}
}

func TestServerTracesLookups(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	invalid := transport.Func(func(_ context.Context, _, u string, _ any, _ http.Header) (*document.Document, error) {
		if slices.Contains(requestedIDs(u), idC) {
			return document.WithErrors(422, map[string]any{"email": []any{"required"}}), nil
		}
		return known(context.Background(), http.MethodGet, u, nil, nil)
	})
	lis := startServer(t, lookup.NewService(factory(invalid)), lookup.ServerConfig{
		Tracing: &tracing.TracingConfig{TracerProvider: tp},
	})
	client := lookup.NewClient(dial(t, lis))

	if _, err := client.FindByIDs(t.Context(), []string{idA, "bad", idB}); err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if _, err := client.FindByIDs(t.Context(), []string{idC}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	ok := attrsOf(spans[0].Attributes())
	if ok[tracing.AttrIDs].AsInt64() != 3 || ok[tracing.AttrFound].AsInt64() != 2 || ok[tracing.AttrRejected].AsInt64() != 1 {
		t.Fatalf("unexpected lookup attributes %v", spans[0].Attributes())
	}
	failed := attrsOf(spans[1].Attributes())
	if failed[tracing.AttrFailureCategory].AsString() != string(failure.ClientError) {
		t.Fatalf("unexpected failure attributes %v", spans[1].Attributes())
	}
}

func attrsOf(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}
