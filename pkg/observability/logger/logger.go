// Package logger provides the structured logger used across esbench.
package logger

import (
	"context"
)

// Logger defines the interface for structured logging.
// All log methods accept a message string followed by key-value pairs for structured fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs
	Error(msg string, args ...any)

	// With creates a child logger with additional key-value pairs that will be
	// included in all subsequent log entries
	With(args ...any) Logger

	// WithContext creates a child logger carrying the run and worker
	// identifiers stored in ctx
	WithContext(ctx context.Context) Logger
}

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	workerIDKey contextKey = "worker_id"
)

// ContextWithRunID stores the benchmark run identifier in ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithWorkerID stores the worker index in ctx.
func ContextWithWorkerID(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerIDKey, worker)
}

// contextFields extracts the identifiers stored by ContextWithRunID and ContextWithWorkerID.
func contextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, "run_id", runID)
	}
	if worker, ok := ctx.Value(workerIDKey).(int); ok {
		fields = append(fields, "worker_id", worker)
	}
	return fields
}

// nopLogger discards everything.
type nopLogger struct{}

// NewNop returns a Logger that discards every entry.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)                 {}
func (nopLogger) Info(string, ...any)                  {}
func (nopLogger) Warn(string, ...any)                  {}
func (nopLogger) Error(string, ...any)                 {}
func (n nopLogger) With(...any) Logger                 { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
