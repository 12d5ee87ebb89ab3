package collectionstore

import (
	"context"
	"time"
)

// Logger takes a message plus alternating keys and values. *slog.Logger and logging.Adapter fit.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger is preferred over Logger for operations that carry a context, so that
// implementations can attach the trace of the request.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector records store metrics by name. The label keys of a name never change.
type MetricsCollector interface {
	RecordDuration(name string, d time.Duration, labels map[string]string)
	IncrementCounter(name string, labels map[string]string)
	RecordValue(name string, v float64, labels map[string]string)
}

// ContextualMetricsCollector variants are called when the collector implements them.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, name string, d time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, name string, labels map[string]string)
	RecordValueContext(ctx context.Context, name string, v float64, labels map[string]string)
}

// TracingCollector wraps every store operation in a span.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(span SpanContext, status string, attrs map[string]string)
}

// SpanContext is the handle of a started span.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}
