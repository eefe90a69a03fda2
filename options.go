package gorawrremote

import (
	"log/slog"
	"maps"
	"time"

	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/breaker"
	"github.com/Keksclan/goRawrRemote/cache"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/ratelimit"
	"github.com/Keksclan/goRawrRemote/tracing"
)

// Option configures a Repository.
type Option func(*config)

// WithBaseURI sets the service root, e.g. "https://api.example.com/v1".
func WithBaseURI(uri string) Option {
	return func(c *config) {
		c.baseURI = uri
	}
}

// WithResourcePath sets the collection path FindByIDs queries, e.g. "/users".
func WithResourcePath(path string) Option {
	return func(c *config) {
		c.resourcePath = path
	}
}

// WithIDsParam overrides the query parameter that carries the ID list.
func WithIDsParam(name string) Option {
	return func(c *config) {
		c.idsParam = name
	}
}

// WithMaxURLLength bounds the length of a batched fetch URL. Requests whose
// URL would be longer are split.
func WithMaxURLLength(n int) Option {
	return func(c *config) {
		c.maxURLLength = n
	}
}

// WithRetry sets how many times a transient transport failure is retried
// and the fixed wait between attempts.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(c *config) {
		c.retries = max(retries, 0)
		c.backoff = max(backoff, 0)
	}
}

// WithUUIDValidation drops IDs that are not canonical UUIDs before any
// cache or network lookup.
func WithUUIDValidation(enabled bool) Option {
	return func(c *config) {
		c.validateUUIDs = enabled
	}
}

// WithRecoverablePatterns lists substrings of error details that turn a
// structured error response into a degraded result instead of a failure.
func WithRecoverablePatterns(patterns ...string) Option {
	return func(c *config) {
		for _, p := range patterns {
			if p != "" {
				c.recoverable = append(c.recoverable, p)
			}
		}
	}
}

// WithTokenProvider sets the source of the bearer credential sent with
// every attempt.
func WithTokenProvider(p auth.TokenProvider) Option {
	return func(c *config) {
		c.tokens = p
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *config) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger used for request and failure events. When
// logRequests is true request start and end are logged at Info.
func WithLogger(l *slog.Logger, logRequests bool) Option {
	return func(c *config) {
		c.logger = l
		c.logRequests = logRequests
	}
}

// WithObserver adds an observer next to the logger.
func WithObserver(o observe.Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithErrorSink replaces the default sink, which logs at Error level.
func WithErrorSink(s observe.Sink) Option {
	return func(c *config) {
		c.sink = s
	}
}

// WithStackTraceInErrors adds creation file, line and stack to the
// normalized errors of raised failures.
func WithStackTraceInErrors(enabled bool) Option {
	return func(c *config) {
		c.normalizer.IncludeStackTrace = enabled
	}
}

// WithStrictBooleans renders boolean error details as "true"/"false"
// instead of the legacy "1"/"false".
func WithStrictBooleans(enabled bool) Option {
	return func(c *config) {
		c.normalizer.StrictBooleans = enabled
	}
}

// WithNegativeTTL sets the negative cache TTL for one category. A
// non-positive ttl disables negative caching for it.
func WithNegativeTTL(category failure.Category, ttl time.Duration) Option {
	return func(c *config) {
		m := maps.Clone(c.ttl.ByCategory)
		if m == nil {
			m = map[failure.Category]time.Duration{}
		}
		m[category] = ttl
		c.ttl.ByCategory = m
	}
}

// WithNegativeTTLPolicy replaces the whole negative cache policy.
func WithNegativeTTLPolicy(p cache.TTLPolicy) Option {
	return func(c *config) {
		c.ttl = p
	}
}

// WithSharedCache writes both caches through to store so that repositories
// of other units of work may reuse results. ttl bounds positive entries.
func WithSharedCache(store cache.Store, ttl time.Duration) Option {
	return func(c *config) {
		c.sharedStore = store
		c.sharedTTL = ttl
	}
}

// WithMiddleware registers a call middleware at the given order.
func WithMiddleware(order int, mw Middleware) Option {
	return func(c *config) {
		c.middlewares.Add(order, mw)
	}
}

// WithRateLimit paces attempts with l. Share one limiter between the
// repositories of all units of work to bound the load on the service.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return WithMiddleware(OrderRateLimit, RateLimitMiddleware(l))
}

// WithBreaker guards attempts with b. Share one breaker between
// repositories, like the limiter.
func WithBreaker(b *breaker.Breaker) Option {
	return WithMiddleware(OrderBreaker, BreakerMiddleware(b))
}

// WithTracing opens a client span around every attempt.
func WithTracing(cfg *tracing.TracingConfig) Option {
	return WithMiddleware(OrderTracing, TracingMiddleware(cfg))
}
