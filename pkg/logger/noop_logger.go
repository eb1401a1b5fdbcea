package logger

import "context"

// noopLogger discards all log entries. Used in tests and as a safe default.
type noopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(ctx context.Context, message string, fields ...Field)            {}
func (noopLogger) Info(ctx context.Context, message string, fields ...Field)             {}
func (noopLogger) Warn(ctx context.Context, message string, fields ...Field)             {}
func (noopLogger) Error(ctx context.Context, message string, err error, fields ...Field) {}
func (noopLogger) Fatal(ctx context.Context, message string, err error, fields ...Field) {}
func (noopLogger) WithFields(fields ...Field) Logger                                     { return noopLogger{} }
func (noopLogger) WithComponent(component string) Logger                                 { return noopLogger{} }
