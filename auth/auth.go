// Package auth supplies the bearer credential sent with every remote call.
//
// The repository never issues tokens itself; it asks a TokenProvider right
// before each attempt.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/metadata"
)

// ErrNoToken is returned when a provider has no credential to offer.
var ErrNoToken = errors.New("auth: no token available")

// TokenProvider yields a bearer credential.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static always returns the same token. An empty Static returns ErrNoToken.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Incoming forwards the bearer token of the inbound gRPC call found in ctx.
// It lets a lookup server act on behalf of its caller.
type Incoming struct{}

func (Incoming) Token(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrNoToken
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", ErrNoToken
	}
	tok := strings.TrimSpace(vals[0])
	if len(tok) > 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Cached memoizes the token of an upstream provider. JWTs are refreshed
// Leeway before their exp claim; opaque tokens are kept for FallbackTTL.
// Concurrent refreshes are collapsed into one upstream call.
type Cached struct {
	upstream    TokenProvider
	leeway      time.Duration
	fallbackTTL time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
	nowFunc   func() time.Time // for testing; defaults to time.Now
}

// NewCached wraps upstream. leeway is subtracted from JWT expiry;
// fallbackTTL applies to tokens without a readable exp claim.
func NewCached(upstream TokenProvider, leeway, fallbackTTL time.Duration) *Cached {
	return &Cached{
		upstream:    upstream,
		leeway:      leeway,
		fallbackTTL: fallbackTTL,
		nowFunc:     time.Now,
	}
}

// Token returns the memoized token, refreshing it when it is about to
// expire.
func (c *Cached) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (any, error) {
		tok, err := c.upstream.Token(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.expiresAt = c.expiry(tok)
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the memoized token, e.g. after the service rejected it.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Cached) expiry(tok string) time.Time {
	now := c.now()
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Add(-c.leeway)
		}
	}
	return now.Add(c.fallbackTTL)
}

func (c *Cached) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}
