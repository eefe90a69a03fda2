package gorawrremote

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/Keksclan/goRawrRemote/errnorm"
	"github.com/Keksclan/goRawrRemote/failure"
)

// RemoteServiceFailure is the single error type a Repository returns for a
// classified failure. Callers branch on Category, never on the cause's type.
type RemoteServiceFailure struct {
	Message string
	URL     string

	// Errors is the normalized collection of the failure. It is never empty.
	Errors errnorm.Collection

	// Cause is the transport error behind the failure, if any.
	Cause error

	category failure.Category
	pcs      []uintptr
}

func newFailure(category failure.Category, url string, errs errnorm.Collection, cause error) *RemoteServiceFailure {
	f := &RemoteServiceFailure{
		URL:      url,
		Errors:   errs,
		Cause:    cause,
		category: category,
	}
	if len(errs) > 0 {
		f.Message = errs.Error()
	} else if cause != nil {
		f.Message = cause.Error()
	} else {
		f.Message = errnorm.MessageUnknown
	}

	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	f.pcs = pcs[:n]
	return f
}

func (f *RemoteServiceFailure) Error() string {
	return fmt.Sprintf("remote service failure (%s): %s", f.category, f.Message)
}

// Category returns the classification of the failure.
func (f *RemoteServiceFailure) Category() failure.Category { return f.category }

// Transient reports whether the same request may succeed later.
func (f *RemoteServiceFailure) Transient() bool { return f.category.Transient() }

// StatusCode returns the first HTTP status known for the failure, or 0.
func (f *RemoteServiceFailure) StatusCode() int {
	if s := f.Errors.Statuses(); len(s) > 0 {
		return s[0]
	}
	var withStatus interface{ StatusCode() int }
	if errors.As(f.Cause, &withStatus) {
		return withStatus.StatusCode()
	}
	return 0
}

func (f *RemoteServiceFailure) Unwrap() error { return f.Cause }

// Location returns the file and line where the failure was raised.
func (f *RemoteServiceFailure) Location() (string, int) {
	if len(f.pcs) == 0 {
		return "", 0
	}
	frame, _ := runtime.CallersFrames(f.pcs[:1]).Next()
	return frame.File, frame.Line
}

// StackTrace renders the captured call stack, one frame per two lines.
func (f *RemoteServiceFailure) StackTrace() string {
	var b strings.Builder
	frames := runtime.CallersFrames(f.pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// IsCategory reports whether err is a RemoteServiceFailure of category c.
func IsCategory(err error, c failure.Category) bool {
	var f *RemoteServiceFailure
	return errors.As(err, &f) && f.category == c
}
