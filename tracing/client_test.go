package tracing

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestTransport_CreatesClientSpanAndInjects(t *testing.T) {
	cfg, rec := newTestConfig(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, "{}")
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(cfg, srv.Client().Transport)}
	resp, err := client.Get(srv.URL + "/users?filter[id]=a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "HTTP GET" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Fatalf("expected SpanKindClient, got %v", span.SpanKind())
	}
	assertString(t, span.Attributes(), "http.request.method", "GET")
	assertIntAttr(t, span.Attributes(), "http.response.status_code", 200)

	if traceparent == "" {
		t.Fatal("expected traceparent header to be injected")
	}
	if want := span.SpanContext().TraceID().String(); traceparent[3:35] != want {
		t.Fatalf("traceparent %q does not carry trace %s", traceparent, want)
	}
}

func TestTransport_ServerErrorMarksSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(cfg, srv.Client().Transport)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()

	if spans := rec.Ended(); len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %+v", spans)
	}
}

func TestTransport_NilConfig(t *testing.T) {
	base := http.DefaultTransport
	if got := Transport(nil, base); got != base {
		t.Fatal("nil config must return the wrapped transport")
	}
}

func TestStartAndEnd(t *testing.T) {
	cfg, rec := newTestConfig(t)

	_, span := cfg.Start(t.Context(), "repository.FindByIDs", attribute.Int("ids", 3))
	End(span, errors.New("boom"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", spans[0].Status().Code)
	}
	assertIntAttr(t, spans[0].Attributes(), "ids", 3)

	var nilCfg *TracingConfig
	ctx, span := nilCfg.Start(t.Context(), "noop")
	if ctx != t.Context() || span.IsRecording() {
		t.Fatal("nil config must not start a span")
	}
	End(span, nil)
}

func assertIntAttr(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsInt64() != want {
				t.Errorf("attribute %q = %d, want %d", key, a.Value.AsInt64(), want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found", key)
}
