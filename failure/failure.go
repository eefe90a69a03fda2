// Package failure classifies remote call failures into a closed set of
// categories. The category drives both the retry decision (transient
// categories are retried) and how long a failed ID stays in the negative
// cache.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Category is the classification of why a remote call failed.
type Category string

const (
	NotFound        Category = "not_found"
	AuthError       Category = "auth_error"
	RateLimited     Category = "rate_limited"
	ServerError     Category = "server_error"
	Timeout         Category = "timeout"
	ConnectionError Category = "connection_error"
	ClientError     Category = "client_error"
	Unknown         Category = "unknown"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	NotFound, AuthError, RateLimited, ServerError,
	Timeout, ConnectionError, ClientError, Unknown,
}

// Transient reports whether a failure of this category may succeed when
// retried shortly after.
func (c Category) Transient() bool {
	switch c {
	case RateLimited, ServerError, Timeout, ConnectionError:
		return true
	default:
		return false
	}
}

// IsTransient is the function form of [Category.Transient].
func IsTransient(c Category) bool { return c.Transient() }

func (c Category) String() string { return string(c) }

// ParseCategory converts a configuration key such as "not_found" into a
// Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("failure: unknown category %q", s)
}

// Code is a transport-level failure signal that carries no HTTP status.
type Code int

const (
	CodeTimeout Code = iota + 1
	CodeConnection
)

// ClassifyStatus maps an HTTP status code to a Category.
func ClassifyStatus(status int) Category {
	switch {
	case status == 404:
		return NotFound
	case status == 401 || status == 403:
		return AuthError
	case status == 429:
		return RateLimited
	case status >= 500 && status <= 599:
		return ServerError
	case status >= 400 && status <= 499:
		return ClientError
	default:
		return Unknown
	}
}

// ClassifyCode maps a transport code to a Category.
func ClassifyCode(code Code) Category {
	switch code {
	case CodeTimeout:
		return Timeout
	case CodeConnection:
		return ConnectionError
	default:
		return Unknown
	}
}

// Classify maps any failure signal to a Category. It accepts an int HTTP
// status, a [Code], or an error. It never panics; unrecognised input is
// Unknown.
func Classify(signal any) Category {
	switch s := signal.(type) {
	case nil:
		return Unknown
	case Category:
		return s
	case int:
		return ClassifyStatus(s)
	case Code:
		return ClassifyCode(s)
	case error:
		return ClassifyError(s)
	default:
		return Unknown
	}
}

// ClassifyError inspects an error chain. Errors that already know their
// category win, then HTTP status codes, then timeouts, then connection
// failures.
func ClassifyError(err error) Category {
	if err == nil {
		return Unknown
	}

	var categorized interface{ Category() Category }
	if errors.As(err, &categorized) {
		if c := categorized.Category(); c != "" {
			return c
		}
	}

	var withStatus interface{ StatusCode() int }
	if errors.As(err, &withStatus) {
		if c := ClassifyStatus(withStatus.StatusCode()); c != Unknown {
			return c
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	if isConnectionFailure(err) {
		return ConnectionError
	}

	return Unknown
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
