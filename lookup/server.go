package lookup

import (
	"log/slog"

	"github.com/Keksclan/goRawrRemote/interceptors"
	"github.com/Keksclan/goRawrRemote/internal/core"
	"github.com/Keksclan/goRawrRemote/ratelimit"
	"github.com/Keksclan/goRawrRemote/tracing"
	"google.golang.org/grpc"
)

// Interceptor execution order; lower values run first (outermost).
const (
	OrderRecovery  = 100
	OrderRequestID = 200
	OrderTracing   = 300
	OrderLogging   = 400
	OrderRateLimit = 500
)

// ServerConfig assembles the interceptors of a lookup server. Every field is
// optional.
type ServerConfig struct {
	Logger  *slog.Logger
	Limiter *ratelimit.Limiter
	Tracing *tracing.TracingConfig

	// Unary adds interceptors next to the built-in ones.
	Unary core.Ordered[grpc.UnaryServerInterceptor]

	// Extra is passed to grpc.NewServer after the interceptor chain.
	Extra []grpc.ServerOption
}

// NewServer creates a gRPC server with h registered as rawr.Entities.
// Panics are recovered, every call gets a request ID and is logged, and
// calls are rate limited and traced when configured.
func NewServer(h Handler, cfg ServerConfig) *grpc.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	unary := cfg.Unary
	unary.Add(OrderRecovery, interceptors.RecoveryUnary(logger))
	unary.Add(OrderRequestID, interceptors.RequestIDUnary())
	unary.Add(OrderLogging, interceptors.LoggingUnary(logger))
	if cfg.Tracing != nil {
		unary.Add(OrderTracing, tracing.UnaryServerInterceptor(cfg.Tracing))
	}
	if cfg.Limiter != nil {
		unary.Add(OrderRateLimit, interceptors.RateLimitUnary(cfg.Limiter))
	}

	s := grpc.NewServer(core.BuildServerOptions(&unary, interceptors.ChainUnary, cfg.Extra...)...)
	Register(s, h)
	return s
}
