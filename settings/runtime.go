package settings

import (
	"context"
	"fmt"
	"log/slog"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/breaker"
	"github.com/Keksclan/goRawrRemote/cache"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/ratelimit"
	"github.com/Keksclan/goRawrRemote/tracing"
	"github.com/Keksclan/goRawrRemote/transport"
)

// Runtime holds the components built once from Settings and shared by every
// repository created from them: limiter, breaker and shared cache store.
type Runtime struct {
	Settings *Settings

	Limiter *ratelimit.Limiter
	Breaker *breaker.Breaker
	Store   cache.Store

	closers []func()
}

// Build constructs the shared components described by s. Close releases
// them.
func (s *Settings) Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Settings: s}

	if s.RateLimit.RPS > 0 {
		rt.Limiter = ratelimit.NewLimiter(s.RateLimit.RPS, s.RateLimit.Burst)
	}
	if s.Breaker.FailureThreshold > 0 {
		rt.Breaker = breaker.New(breaker.Config{
			FailureThreshold:   s.Breaker.FailureThreshold,
			OpenTimeout:        s.Breaker.OpenTimeout,
			HalfOpenMaxSuccess: s.Breaker.HalfOpenMaxSuccess,
		})
	}

	var (
		l1 *cache.L1
		l2 *cache.L2
	)
	if c := s.SharedCache; c.L1MaxCost > 0 {
		var err error
		l1, err = cache.NewL1(c.L1MaxCost)
		if err != nil {
			return nil, fmt.Errorf("shared_cache: l1: %w", err)
		}
		rt.closers = append(rt.closers, l1.Close)
	}
	if c := s.SharedCache; c.RedisURL != "" {
		var err error
		l2, err = cache.NewL2FromURL(c.RedisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("shared_cache: redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = l2.Close() })
		if err := l2.Ping(ctx); err != nil {
			// The store fails soft, so an unreachable redis only costs
			// cache hits.
			slog.Warn("shared cache redis unreachable", "error", err)
		}
	}
	switch {
	case l1 != nil && l2 != nil:
		rt.Store = cache.NewTiered(l1, l2)
	case l1 != nil:
		rt.Store = l1
	case l2 != nil:
		rt.Store = l2
	}

	return rt, nil
}

// Close releases the shared stores.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ClientConfig returns the HTTP client settings for the configured timeout.
func (rt *Runtime) ClientConfig() transport.ClientConfig {
	cfg := transport.DefaultClientConfig()
	if rt.Settings.Timeout > 0 {
		cfg.Timeout = rt.Settings.Timeout
	}
	return cfg
}

// Extras are per-process collaborators that do not come from the file.
type Extras struct {
	Logger   *slog.Logger
	Metrics  *observe.Metrics
	Tracing  *tracing.TracingConfig
	Tokens   auth.TokenProvider
	Sink     observe.Sink
	Observer observe.Observer
}

// Options translates the settings and the shared components into
// repository options. A token provider in extras takes precedence over the
// configured static token.
func (rt *Runtime) Options(extras Extras) []gorawrremote.Option {
	s := rt.Settings

	opts := []gorawrremote.Option{
		gorawrremote.WithBaseURI(s.BaseURI),
		gorawrremote.WithResourcePath(s.ResourcePath),
		gorawrremote.WithIDsParam(s.IDsParam),
		gorawrremote.WithMaxURLLength(s.MaxURLLength),
		gorawrremote.WithRetry(s.RetryAttempts, s.RetryBackoff),
		gorawrremote.WithUUIDValidation(s.ValidateUUIDs),
		gorawrremote.WithRecoverablePatterns(s.RecoverableErrorPatterns...),
		gorawrremote.WithStackTraceInErrors(s.IncludeStackTraceInErrors),
		gorawrremote.WithStrictBooleans(s.StrictBooleans),
		gorawrremote.WithLogger(extras.Logger, s.LogRequests),
	}

	// Validate already rejected unknown categories.
	ttls, _ := s.negativeTTLs()
	for c, d := range ttls {
		opts = append(opts, gorawrremote.WithNegativeTTL(c, d))
	}

	switch {
	case extras.Tokens != nil:
		opts = append(opts, gorawrremote.WithTokenProvider(extras.Tokens))
	case s.Token != "":
		opts = append(opts, gorawrremote.WithTokenProvider(auth.Static(s.Token)))
	}

	if rt.Limiter != nil {
		opts = append(opts, gorawrremote.WithRateLimit(rt.Limiter))
	}
	if rt.Breaker != nil {
		opts = append(opts, gorawrremote.WithBreaker(rt.Breaker))
	}
	if rt.Store != nil {
		opts = append(opts, gorawrremote.WithSharedCache(rt.Store, s.SharedCache.TTL))
	}
	if extras.Tracing != nil {
		opts = append(opts, gorawrremote.WithTracing(extras.Tracing))
	}
	if extras.Metrics != nil {
		opts = append(opts, gorawrremote.WithObserver(extras.Metrics))
	}
	if extras.Observer != nil {
		opts = append(opts, gorawrremote.WithObserver(extras.Observer))
	}
	if extras.Sink != nil {
		opts = append(opts, gorawrremote.WithErrorSink(extras.Sink))
	}
	return opts
}
