package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// ClientConfig tunes the HTTP client used by HTTP.
type ClientConfig struct {
	Timeout             time.Duration
	DialTimeout         time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Wrap, when set, decorates the tuned round tripper, e.g. with tracing.
	Wrap func(http.RoundTripper) http.RoundTripper
}

// DefaultClientConfig returns conservative settings for talking to a single
// upstream service.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             10 * time.Second,
		DialTimeout:         3 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient constructs an http.Client with pooled keep-alive
// connections.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 60 * time.Second}).DialContext,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 150 * time.Millisecond,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(64),
		},
	}
	if cfg.Wrap != nil {
		rt = cfg.Wrap(rt)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
}
