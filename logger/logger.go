package logger

import "context"

// Logger is the structured logger passed explicitly through every component.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// WithField returns a logger that adds key to every subsequent entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger that adds fields to every subsequent entry.
	WithFields(fields map[string]interface{}) Logger
}
