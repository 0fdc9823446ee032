package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskforge"

// StartTaskSpan starts a span for an operation on a single task.
func StartTaskSpan(ctx context.Context, op, taskStrID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op,
		trace.WithAttributes(
			attribute.String("task.str_id", taskStrID),
		),
	)
}

// StartSelectionSpan starts a span for a scheduling selection query.
func StartSelectionSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "selection",
		trace.WithAttributes(
			attribute.String("selection.kind", kind),
		),
	)
}
