package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	fieldTraceID = "trace_id"
	fieldSpanID  = "span_id"
)

// Adapter exposes a zap logger through the store's Logger and ContextualLogger interfaces.
// Arguments are alternating keys and values, as with slog.
type Adapter struct {
	sugar *zap.SugaredLogger
}

func Sugared(logger *zap.Logger) *Adapter {
	return &Adapter{sugar: logger.Sugar()}
}

func (a *Adapter) Debug(msg string, args ...any) { a.sugar.Debugw(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.sugar.Infow(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.sugar.Warnw(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.sugar.Errorw(msg, args...) }

// DebugContext logs with the trace and span id of the span active in ctx, if any.
func (a *Adapter) DebugContext(ctx context.Context, msg string, args ...any) {
	a.sugar.Debugw(msg, withTrace(ctx, args)...)
}

func (a *Adapter) InfoContext(ctx context.Context, msg string, args ...any) {
	a.sugar.Infow(msg, withTrace(ctx, args)...)
}

func (a *Adapter) WarnContext(ctx context.Context, msg string, args ...any) {
	a.sugar.Warnw(msg, withTrace(ctx, args)...)
}

func (a *Adapter) ErrorContext(ctx context.Context, msg string, args ...any) {
	a.sugar.Errorw(msg, withTrace(ctx, args)...)
}

func withTrace(ctx context.Context, args []any) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}

	out := make([]any, 0, len(args)+4)
	out = append(out, args...)

	return append(out, fieldTraceID, sc.TraceID().String(), fieldSpanID, sc.SpanID().String())
}

var (
	_ collectionstore.Logger           = (*Adapter)(nil)
	_ collectionstore.ContextualLogger = (*Adapter)(nil)
)
