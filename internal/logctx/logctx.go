// Package logctx carries ambient request context (correlation and trace
// identifiers) that structured log records are enriched with.
package logctx

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Keys of the ambient fields returned by Fields.
const (
	KeyCorrelationID = "correlation_id"
	KeyTraceID       = "trace_id"
	KeySpanID        = "span_id"
)

type correlationKey struct{}

// WithCorrelationID returns a context carrying id. An empty id is replaced
// with a freshly generated one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// TraceID returns the hex trace id of the span in ctx, or "" without a valid span.
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// SpanID returns the hex span id of the span in ctx, or "" without a valid span.
func SpanID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.SpanID().String()
}

// Fields returns the non-empty ambient fields of ctx.
func Fields(ctx context.Context) map[string]any {
	fields := make(map[string]any, 3)
	for key, value := range map[string]string{
		KeyCorrelationID: CorrelationID(ctx),
		KeyTraceID:       TraceID(ctx),
		KeySpanID:        SpanID(ctx),
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
