package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/esbench/pkg/observability/logger"
)

// MockLogger captures log entries for assertion in tests. It is safe for use by
// concurrent benchmark workers.
type MockLogger struct {
	mu     sync.Mutex
	logs   []LogEntry
	fields map[string]any
	with   []any
	parent *MockLogger
}

// LogEntry represents a single log entry captured by MockLogger.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
	// With holds every key-value pair added through With, in order and
	// including repeated keys.
	With []any
}

// NewMockLogger returns an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

// With returns a child logger whose entries carry args and land in the same buffer.
func (m *MockLogger) With(args ...any) logger.Logger {
	fields := make(map[string]any, len(m.fields)+len(args)/2)
	for k, v := range m.fields {
		fields[k] = v
	}
	for k, v := range argsToMap(args) {
		fields[k] = v
	}
	with := make([]any, 0, len(m.with)+len(args))
	with = append(append(with, m.with...), args...)
	return &MockLogger{fields: fields, with: with, parent: m.root()}
}

// WithContext returns the same logger.
func (m *MockLogger) WithContext(context.Context) logger.Logger {
	return m
}

// Entries returns a copy of the captured entries.
func (m *MockLogger) Entries() []LogEntry {
	root := m.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	out := make([]LogEntry, len(root.logs))
	copy(out, root.logs)
	return out
}

// HasMessage reports whether an entry with the given level and message was captured.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Msg == msg {
			return true
		}
	}
	return false
}

func (m *MockLogger) record(level, msg string, args []any) {
	fields := argsToMap(args)
	for k, v := range m.fields {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	root := m.root()
	root.mu.Lock()
	root.logs = append(root.logs, LogEntry{Level: level, Msg: msg, Fields: fields, With: append([]any(nil), m.with...)})
	root.mu.Unlock()
}

func (m *MockLogger) root() *MockLogger {
	if m.parent != nil {
		return m.parent
	}
	return m
}

func argsToMap(args []any) map[string]any {
	fields := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
