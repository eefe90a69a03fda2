// Package server runs a lookup gRPC server next to an HTTP endpoint that
// exposes Prometheus metrics and a health check, and shuts both down
// together.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Server is a minimal wrapper around a gRPC server with optional metrics.
type Server struct {
	grpcServer *grpc.Server
	cfg        config
}

// New wraps g. Services must already be registered on it.
func New(g *grpc.Server, opts ...Option) *Server {
	cfg := config{
		addr:            ":50051",
		gatherer:        prometheus.DefaultGatherer,
		logger:          slog.Default(),
		shutdownTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Server{grpcServer: g, cfg: cfg}
}

// GRPC returns the underlying *grpc.Server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// MetricsHandler returns an http.Handler serving /metrics and /healthz.
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.addr)
	if err != nil {
		return err
	}
	var metrics net.Listener
	if s.cfg.metricsAddr != "" {
		metrics, err = net.Listen("tcp", s.cfg.metricsAddr)
		if err != nil {
			lis.Close()
			return err
		}
	}
	return s.Serve(ctx, lis, metrics)
}

// Serve serves gRPC on lis and metrics on metrics (which may be nil) until
// ctx is done or either server fails, then stops both.
func (s *Server) Serve(ctx context.Context, lis, metrics net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.cfg.logger.Info("lookup server listening", "addr", lis.Addr().String())
		if err := s.grpcServer.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	var httpServer *http.Server
	if metrics != nil {
		httpServer = &http.Server{
			Handler:           s.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			s.cfg.logger.Info("metrics listening", "addr", metrics.Addr().String())
			if err := httpServer.Serve(metrics); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.cfg.logger.Info("shutting down lookup server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout)
		defer cancel()

		if httpServer != nil {
			_ = httpServer.Shutdown(shutdownCtx)
		}

		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			s.grpcServer.Stop()
		}
		return nil
	})

	return g.Wait()
}
