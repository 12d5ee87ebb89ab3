package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const attrStatus = "status"

// TracingCollector starts one OpenTelemetry span per store operation.
type TracingCollector struct {
	tracer trace.Tracer
}

func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan returns ctx unchanged and a nil span when no tracer is configured.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, collectionstore.SpanContext) {

	if t.tracer == nil {
		return ctx, nil
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return ctx, &Span{span: span}
}

// FinishSpan sets the final attributes and status and ends the span. Foreign SpanContexts are ignored.
func (t *TracingCollector) FinishSpan(spanCtx collectionstore.SpanContext, status string, attrs map[string]string) {
	s, ok := spanCtx.(*Span)
	if !ok || s == nil {
		return
	}

	s.span.SetAttributes(toAttributes(attrs)...)
	s.SetStatus(status)
	s.span.End()
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// SetStatus maps the store's status strings to span codes. Unknown values become a status attribute.
func (s *Span) SetStatus(status string) {
	switch status {
	case "success", "ok":
		s.span.SetStatus(codes.Ok, "")
	case "error":
		s.span.SetStatus(codes.Error, "operation failed")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	default:
		s.span.SetAttributes(attribute.String(attrStatus, status))
	}
}

func (s *Span) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ collectionstore.TracingCollector = (*TracingCollector)(nil)
	_ collectionstore.SpanContext      = (*Span)(nil)
)
