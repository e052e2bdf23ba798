package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type for the logger context key to avoid
// collisions with other packages' context values.
type contextKey struct{}

// WithLogger returns a context carrying the given logger. Handlers put a
// request-scoped logger (request id, caller identity) into the context so
// deeper layers log with the same correlation fields.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from the context, if one was set.
func FromContext(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(contextKey{}).(*slog.Logger)
	return logger, ok
}

// FromContextOrDefault extracts the logger from the context, falling back
// to the provided default (or slog.Default when that is nil too).
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if logger, ok := FromContext(ctx); ok {
		return logger
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
