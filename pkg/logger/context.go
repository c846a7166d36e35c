package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With returns a context whose logger carries the extra fields. Used by the
// correlation-id middleware so every log line downstream of a request is
// traceable back to it.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, From(ctx).With(fields...))
}

// From returns the request-scoped logger, falling back to the process-wide
// one when the context carries none.
func From(ctx context.Context) *slog.Logger {
	if lg, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return lg
	}
	return LoggerWrapper()
}
