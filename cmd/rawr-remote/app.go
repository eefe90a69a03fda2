package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/settings"
	"github.com/Keksclan/goRawrRemote/tracing"
	"github.com/Keksclan/goRawrRemote/transport"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds what every command needs to build repositories.
type app struct {
	runtime   *settings.Runtime
	transport *transport.HTTP
	tracing   *tracing.TracingConfig
	metrics   *observe.Metrics

	shutdown []func(context.Context) error
}

func newApp(ctx context.Context, s *settings.Settings, metrics *observe.Metrics) (*app, error) {
	rt, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{runtime: rt, metrics: metrics}

	if withTrace || s.Tracing.Stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		a.shutdown = append(a.shutdown, tp.Shutdown)
		a.tracing = &tracing.TracingConfig{
			TracerProvider: tp,
			Propagators:    propagation.TraceContext{},
		}
	}

	clientCfg := rt.ClientConfig()
	if a.tracing != nil {
		clientCfg.Wrap = func(next http.RoundTripper) http.RoundTripper {
			return tracing.Transport(a.tracing, next)
		}
	}
	a.transport = transport.NewHTTP(transport.NewHTTPClient(clientCfg),
		transport.WithUserAgent("rawr-remote"),
		transport.WithLogger(slog.Default()),
	)
	return a, nil
}

// repository builds a repository for one unit of work.
func (a *app) repository(tokens auth.TokenProvider, extra ...gorawrremote.Option) (*gorawrremote.Repository, error) {
	opts := a.runtime.Options(settings.Extras{
		Logger:  slog.Default(),
		Metrics: a.metrics,
		Tracing: a.tracing,
		Tokens:  tokens,
	})
	return gorawrremote.New(a.transport, append(opts, extra...)...)
}

func (a *app) close() {
	ctx := context.Background()
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			slog.Warn("shutdown failed", "error", err)
		}
	}
	a.runtime.Close()
}
