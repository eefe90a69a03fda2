package observe

import (
	"context"
	"log/slog"

	"github.com/Keksclan/goRawrRemote/contextx"
	"github.com/Keksclan/goRawrRemote/errnorm"
)

// Sink receives failures worth operational attention together with their
// normalized error collection.
type Sink interface {
	Report(ctx context.Context, err error, errs errnorm.Collection)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, err error, errs errnorm.Collection)

func (f SinkFunc) Report(ctx context.Context, err error, errs errnorm.Collection) { f(ctx, err, errs) }

// NopSink drops every report.
type NopSink struct{}

func (NopSink) Report(context.Context, error, errnorm.Collection) {}

// LogSink writes reports at Error level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(ctx context.Context, err error, errs errnorm.Collection) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.Any("details", errs.Details()),
	}
	if statuses := errs.Statuses(); len(statuses) > 0 {
		attrs = append(attrs, slog.Any("statuses", statuses))
	}
	attrs = contextx.AppendRequestID(ctx, attrs)
	l.LogAttrs(ctx, slog.LevelError, "remote service failure", attrs...)
}
