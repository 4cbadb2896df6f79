package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta identifies one engine operation for telemetry purposes.
type CallMeta struct {
	Function  string // Function name (empty for bulk or maintenance operations)
	Language  string // Backend language code (may be empty)
	Operation string // Engine operation: get|fetch|bulk|search|export|sweep
}

// SpanName returns the deterministic span name for this call.
// Format: rfc.<operation>
func (m CallMeta) SpanName() string {
	if m.Operation == "" {
		return "rfc.call"
	}
	return "rfc." + m.Operation
}

// CallID returns the cache-key form of the call, FUNCTION@LANG, or just
// the operation name when no function is involved.
func (m CallMeta) CallID() string {
	if m.Function == "" {
		return m.Operation
	}
	if m.Language == "" {
		return m.Function
	}
	return m.Function + "@" + m.Language
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an engine operation.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rfc.operation", meta.Operation),
		attribute.Bool("rfc.error", false), // Will be updated in EndSpan if error
	}
	if meta.Function != "" {
		attrs = append(attrs, attribute.String("rfc.function", meta.Function))
	}
	if meta.Language != "" {
		attrs = append(attrs, attribute.String("rfc.language", meta.Language))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("rfc.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
