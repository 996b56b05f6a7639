// Package log configures zerolog for the server and exposes a context-aware Logger.
package log

import "context"

// Fields are structured key/value pairs attached to a log entry.
type Fields = map[string]any

// Logger is the request-scoped logging interface used by the HTTP layer.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	With(fields Fields) Logger
}
