package logging

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext stores log in ctx for FromContext.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// With derives the context logger with extra attributes, so everything
// below a connection or a request logs the same identifiers.
func With(ctx context.Context, args ...any) (context.Context, *slog.Logger) {
	log := FromContext(ctx).With(args...)
	return WithContext(ctx, log), log
}
