package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/Keksclan/goRawrRemote/contextx"
	"github.com/Keksclan/goRawrRemote/failure"
)

// Logger writes events as structured log records. Request start and end
// are logged at Info when LogRequests is set and at Debug otherwise.
type Logger struct {
	log         *slog.Logger
	logRequests bool
}

// NewLogger returns a Logger writing to l, or slog.Default() when l is nil.
func NewLogger(l *slog.Logger, logRequests bool) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l, logRequests: logRequests}
}

func (l *Logger) requestLevel() slog.Level {
	if l.logRequests {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (l *Logger) attrs(ctx context.Context, c Call, extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(extra)+4)
	attrs = append(attrs,
		slog.String("method", c.Method),
		slog.String("url", c.URL),
	)
	if c.IDs > 0 {
		attrs = append(attrs, slog.Int("ids", c.IDs))
	}
	attrs = contextx.AppendRequestID(ctx, attrs)
	return append(attrs, extra...)
}

func (l *Logger) RequestStarted(ctx context.Context, c Call) {
	l.log.LogAttrs(ctx, l.requestLevel(), "remote request started", l.attrs(ctx, c)...)
}

func (l *Logger) RequestFinished(ctx context.Context, c Call, d time.Duration, err error) {
	extra := []slog.Attr{slog.Duration("duration", d)}
	if err != nil {
		extra = append(extra, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, l.requestLevel(), "remote request finished", l.attrs(ctx, c, extra...)...)
}

func (l *Logger) Retried(ctx context.Context, c Call, attempt int, err error, delay time.Duration) {
	l.log.LogAttrs(ctx, slog.LevelWarn, "retrying remote request", l.attrs(ctx, c,
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)...)
}

func (l *Logger) Failed(ctx context.Context, c Call, category failure.Category, err error) {
	level := slog.LevelError
	if category == failure.NotFound {
		level = slog.LevelInfo
	} else if category.Transient() {
		level = slog.LevelWarn
	}
	extra := []slog.Attr{slog.String("category", category.String())}
	if err != nil {
		extra = append(extra, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, level, "remote request failed", l.attrs(ctx, c, extra...)...)
}

func (l *Logger) Rejected(ctx context.Context, ids []string) {
	l.log.LogAttrs(ctx, slog.LevelWarn, "rejected malformed ids", l.idAttrs(ctx, ids)...)
}

func (l *Logger) Skipped(ctx context.Context, ids []string) {
	l.log.LogAttrs(ctx, slog.LevelDebug, "skipped ids held by negative cache", l.idAttrs(ctx, ids)...)
}

func (l *Logger) Degraded(ctx context.Context, c Call, message string) {
	l.log.LogAttrs(ctx, slog.LevelWarn, "recoverable remote error", l.attrs(ctx, c, slog.String("message", message))...)
}

func (l *Logger) idAttrs(ctx context.Context, ids []string) []slog.Attr {
	return contextx.AppendRequestID(ctx, []slog.Attr{slog.Any("ids", ids), slog.Int("count", len(ids))})
}
