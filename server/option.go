package server

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	addr            string
	metricsAddr     string
	gatherer        prometheus.Gatherer
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*config)

// WithAddr sets the gRPC listen address.
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithMetricsAddr sets the listen address of the /metrics endpoint. An empty
// address disables it.
func WithMetricsAddr(addr string) Option {
	return func(c *config) {
		c.metricsAddr = addr
	}
}

// WithGatherer sets the registry served on /metrics. Defaults to the
// prometheus default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithShutdownTimeout bounds graceful shutdown; after it in-flight calls are
// cut off.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		c.shutdownTimeout = d
	}
}
