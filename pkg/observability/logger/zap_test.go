package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json debug", config: Config{Level: DebugLevel, Format: JSONFormat}},
		{name: "text info", config: Config{Level: InfoLevel, Format: TextFormat}},
		{name: "zero value uses defaults", config: Config{}},
		{name: "invalid level", config: Config{Level: "verbose", Format: JSONFormat}, wantErr: true},
		{name: "invalid format", config: Config{Level: InfoLevel, Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Output = &bytes.Buffer{}
			log, err := NewZapLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewZapLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && log == nil {
				t.Fatal("NewZapLogger() returned nil logger")
			}
		})
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewZapLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	log.With("index", "es.ycsb").Info("index created", "shards", 1)
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "index created" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["index"] != "es.ycsb" {
		t.Errorf("index = %v", entry["index"])
	}
	if entry["shards"] != float64(1) {
		t.Errorf("shards = %v", entry["shards"])
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	ctx := ContextWithWorkerID(ContextWithRunID(context.Background(), "run-1"), 3)
	log.WithContext(ctx).Info("worker started")
	_ = log.Sync()

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-1"`) {
		t.Errorf("expected run_id in output: %s", out)
	}
	if !strings.Contains(out, `"worker_id":3`) {
		t.Errorf("expected worker_id in output: %s", out)
	}

	if got := log.WithContext(context.Background()); got != Logger(log) {
		t.Error("WithContext without identifiers should return the same logger")
	}
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewZapLogger(Config{Level: WarnLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one entry, got %d: %s", len(lines), buf.String())
	}
}

func TestParseLogLevelAndFormat(t *testing.T) {
	if lvl, err := ParseLogLevel(" WARNING "); err != nil || lvl != WarnLevel {
		t.Fatalf("ParseLogLevel() = %v, %v", lvl, err)
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if f, err := ParseLogFormat("console"); err != nil || f != TextFormat {
		t.Fatalf("ParseLogFormat() = %v, %v", f, err)
	}
	if _, err := ParseLogFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Info("ignored", "k", "v")
	if log.With("a", 1) == nil || log.WithContext(context.Background()) == nil {
		t.Fatal("nop logger children must not be nil")
	}
}
