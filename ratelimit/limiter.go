// Package ratelimit provides a token-bucket limiter backed by
// golang.org/x/time/rate that paces outbound calls to the remote service.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter shared by every repository that talks
// to the same upstream.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Wait blocks until a request may proceed or ctx is done. It fails early
// when the wait would outlast ctx's deadline.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
