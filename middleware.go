// Package gorawrremote is a resilient client for a remote service that
// serves JSON documents of entities addressed by ID.
//
// A [Repository] validates IDs before spending a round trip, answers from a
// positive cache, skips IDs with a live negative cache entry, fetches the
// rest in URL-length-bounded batches with retry and fixed backoff, and turns
// every failure into one [RemoteServiceFailure] carrying a classified
// category and a normalized error collection.
//
// A repository is meant to live for one unit of work (for example one
// inbound request) and is not safe for concurrent use.
package gorawrremote

import (
	"context"
	"net/http"

	"github.com/Keksclan/goRawrRemote/breaker"
	"github.com/Keksclan/goRawrRemote/document"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/ratelimit"
	"github.com/Keksclan/goRawrRemote/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Call is one attempt against the transport.
type Call struct {
	Method  string
	URL     string
	Body    any
	Headers http.Header
}

// CallFunc performs one attempt and returns the response document.
type CallFunc func(ctx context.Context, c Call) (*document.Document, error)

// Middleware transforms a CallFunc, allowing pre/post behavior composition
// around every attempt, retries included.
type Middleware func(CallFunc) CallFunc

// Chain composes middlewares from left to right, i.e., Chain(A, B)(h) => A(B(h)).
func Chain(mw ...Middleware) Middleware {
	return func(next CallFunc) CallFunc {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Wrap applies the middleware chain to a call and returns the wrapped call.
func Wrap(h CallFunc, mw ...Middleware) CallFunc {
	if len(mw) == 0 {
		return h
	}
	return Chain(mw...)(h)
}

// Fixed priority levels for the built-in middlewares. Lower values run
// first (outermost). Custom middlewares default to OrderCustom.
const (
	OrderTracing   = 100
	OrderBreaker   = 200
	OrderRateLimit = 300
	OrderCustom    = 1000
)

// TracingMiddleware opens a client span per attempt.
func TracingMiddleware(cfg *tracing.TracingConfig) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, c Call) (*document.Document, error) {
			ctx, span := cfg.Start(ctx, "rawr.remote "+c.Method,
				attribute.String("http.request.method", c.Method),
				attribute.String("url.full", c.URL),
			)
			doc, err := next(ctx, c)
			if err == nil && doc != nil && doc.HasErrors() {
				span.SetAttributes(attribute.Bool("rawr.error_document", true))
			}
			tracing.End(span, err)
			return doc, err
		}
	}
}

// RateLimitMiddleware waits for l before every attempt.
func RateLimitMiddleware(l *ratelimit.Limiter) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, c Call) (*document.Document, error) {
			if err := l.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, c)
		}
	}
}

// BreakerMiddleware short-circuits attempts while b is open. Only transient
// transport failures and server error documents count against the breaker.
func BreakerMiddleware(b *breaker.Breaker) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, c Call) (*document.Document, error) {
			var doc *document.Document
			err := b.Guard(func() error {
				var err error
				doc, err = next(ctx, c)
				if err == nil && doc != nil && doc.HasErrors() && doc.Status >= 500 {
					return errServerDocument
				}
				return err
			}, func(err error) bool {
				return err == errServerDocument || failure.ClassifyError(err).Transient()
			})
			if err == errServerDocument {
				return doc, nil
			}
			return doc, err
		}
	}
}

// errServerDocument lets a 5xx error document trip the breaker while still
// reaching the caller as a document.
var errServerDocument error = serverDocument{}

type serverDocument struct{}

func (serverDocument) Error() string { return "server error document" }
