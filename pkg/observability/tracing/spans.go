package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer scope used for benchmark spans.
const InstrumentationName = "github.com/nimburion/esbench"

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	SpanOperationDBRead   SpanOperation = "read"
	SpanOperationDBScan   SpanOperation = "scan"
	SpanOperationDBInsert SpanOperation = "insert"
	SpanOperationDBUpdate SpanOperation = "update"
	SpanOperationDBDelete SpanOperation = "delete"
	SpanOperationDBInit   SpanOperation = "init"
)

// StartDatabaseSpan creates a client span for one document store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(InstrumentationName)

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanOpts.attributes...),
	)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the index name for the span.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.table", table))
	}
}

// WithDBSystem sets the database system (e.g., "elasticsearch", "sqlite").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBKey sets the record key the operation addresses.
func WithDBKey(key string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.key", key))
	}
}

// WithDBRecordCount sets the number of records requested by a scan.
func WithDBRecordCount(count int) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.Int("db.record_count", count))
	}
}

// RecordError records an error in the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// RecordStatus sets the benchmark status attribute; ERROR also marks the span failed.
func RecordStatus(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("esbench.status", status))
	switch {
	case err != nil:
		RecordError(span, err)
	case status == "ERROR":
		span.SetStatus(codes.Error, status)
	default:
		RecordSuccess(span)
	}
}
