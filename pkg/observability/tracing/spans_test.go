package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	previous := otel.GetTracerProvider()
	spanRecorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	return spanRecorder
}

func TestStartDatabaseSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	tests := []struct {
		name          string
		operation     SpanOperation
		opts          []DatabaseSpanOption
		expectedName  string
		expectedAttrs map[string]any
	}{
		{
			name:          "read without options",
			operation:     SpanOperationDBRead,
			expectedName:  "DB read",
			expectedAttrs: map[string]any{"db.operation": "read"},
		},
		{
			name:         "scan with table and count",
			operation:    SpanOperationDBScan,
			opts:         []DatabaseSpanOption{WithDBTable("usertable"), WithDBRecordCount(10)},
			expectedName: "DB scan usertable",
			expectedAttrs: map[string]any{
				"db.operation":    "scan",
				"db.table":        "usertable",
				"db.record_count": int64(10),
			},
		},
		{
			name:         "insert with all options",
			operation:    SpanOperationDBInsert,
			opts:         []DatabaseSpanOption{WithDBTable("usertable"), WithDBSystem("elasticsearch"), WithDBKey("user1")},
			expectedName: "DB insert usertable",
			expectedAttrs: map[string]any{
				"db.operation": "insert",
				"db.table":     "usertable",
				"db.system":    "elasticsearch",
				"db.key":       "user1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, span := StartDatabaseSpan(context.Background(), tt.operation, tt.opts...)
			span.End()

			spans := recorder.Ended()
			got := spans[len(spans)-1]
			if got.Name() != tt.expectedName {
				t.Errorf("expected span name %q, got %q", tt.expectedName, got.Name())
			}
			if got.SpanKind() != trace.SpanKindClient {
				t.Errorf("expected client span, got %v", got.SpanKind())
			}
			attrs := make(map[string]any)
			for _, kv := range got.Attributes() {
				attrs[string(kv.Key)] = kv.Value.AsInterface()
			}
			for k, want := range tt.expectedAttrs {
				if attrs[k] != want {
					t.Errorf("attribute %s = %v, want %v", k, attrs[k], want)
				}
			}
		})
	}
}

func TestRecordStatus(t *testing.T) {
	recorder := setupTestTracer(t)

	tests := []struct {
		status string
		err    error
		code   codes.Code
	}{
		{status: "OK", code: codes.Ok},
		{status: "NOT_FOUND", code: codes.Ok},
		{status: "ERROR", code: codes.Error},
		{status: "ERROR", err: errors.New("boom"), code: codes.Error},
	}
	for _, tt := range tests {
		_, span := StartDatabaseSpan(context.Background(), SpanOperationDBRead)
		RecordStatus(span, tt.status, tt.err)
		span.End()

		spans := recorder.Ended()
		got := spans[len(spans)-1]
		if got.Status().Code != tt.code {
			t.Errorf("status %s: expected code %v, got %v", tt.status, tt.code, got.Status().Code)
		}
		if tt.err != nil && len(got.Events()) == 0 {
			t.Errorf("expected error event to be recorded")
		}
	}
}
