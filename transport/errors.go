package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Keksclan/goRawrRemote/failure"
)

// ErrDecode is wrapped by errors for response bodies that are not valid
// documents.
var ErrDecode = errors.New("transport: invalid response document")

// Error is a failed exchange that produced no usable document: either the
// request never completed (Err is set) or the service answered with a
// non-2xx status and no error document (Status is set).
type Error struct {
	Method string
	URL    string
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("transport: %s %s: status %d: %v", e.Method, e.URL, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transport: %s %s: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("transport: %s %s: unexpected status %d", e.Method, e.URL, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status, or 0 when no response arrived.
func (e *Error) StatusCode() int { return e.Status }

// Timeout reports whether the request ran out of time.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Category classifies the failure.
func (e *Error) Category() failure.Category {
	if e.Status != 0 {
		if c := failure.ClassifyStatus(e.Status); c != failure.Unknown {
			return c
		}
	}
	if e.Timeout() {
		return failure.Timeout
	}
	return failure.ClassifyError(e.Err)
}
