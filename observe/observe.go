// Package observe is the side channel through which a repository reports
// what it is doing: requests with their durations, retries, classified
// failures, rejected IDs and degraded results.
package observe

import (
	"context"
	"time"

	"github.com/Keksclan/goRawrRemote/failure"
)

// Call identifies one remote exchange.
type Call struct {
	Method string
	URL    string
	IDs    int
}

// Observer receives repository events. Implementations must be cheap and
// must not block.
type Observer interface {
	RequestStarted(ctx context.Context, c Call)
	RequestFinished(ctx context.Context, c Call, d time.Duration, err error)
	Retried(ctx context.Context, c Call, attempt int, err error, delay time.Duration)
	Failed(ctx context.Context, c Call, category failure.Category, err error)
	Rejected(ctx context.Context, ids []string)
	Skipped(ctx context.Context, ids []string)
	Degraded(ctx context.Context, c Call, message string)
}

// Nop ignores every event. Embed it to implement only some events.
type Nop struct{}

func (Nop) RequestStarted(context.Context, Call)                        {}
func (Nop) RequestFinished(context.Context, Call, time.Duration, error) {}
func (Nop) Retried(context.Context, Call, int, error, time.Duration)    {}
func (Nop) Failed(context.Context, Call, failure.Category, error)       {}
func (Nop) Rejected(context.Context, []string)                          {}
func (Nop) Skipped(context.Context, []string)                           {}
func (Nop) Degraded(context.Context, Call, string)                      {}

// Multi fans every event out to several observers, in order.
type Multi []Observer

// Combine returns a single Observer for obs, skipping nils.
func Combine(obs ...Observer) Observer {
	var m Multi
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) RequestStarted(ctx context.Context, c Call) {
	for _, o := range m {
		o.RequestStarted(ctx, c)
	}
}

func (m Multi) RequestFinished(ctx context.Context, c Call, d time.Duration, err error) {
	for _, o := range m {
		o.RequestFinished(ctx, c, d, err)
	}
}

func (m Multi) Retried(ctx context.Context, c Call, attempt int, err error, delay time.Duration) {
	for _, o := range m {
		o.Retried(ctx, c, attempt, err, delay)
	}
}

func (m Multi) Failed(ctx context.Context, c Call, category failure.Category, err error) {
	for _, o := range m {
		o.Failed(ctx, c, category, err)
	}
}

func (m Multi) Rejected(ctx context.Context, ids []string) {
	for _, o := range m {
		o.Rejected(ctx, ids)
	}
}

func (m Multi) Skipped(ctx context.Context, ids []string) {
	for _, o := range m {
		o.Skipped(ctx, ids)
	}
}

func (m Multi) Degraded(ctx context.Context, c Call, message string) {
	for _, o := range m {
		o.Degraded(ctx, c, message)
	}
}
