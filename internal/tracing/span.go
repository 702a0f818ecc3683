package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func orNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return tracer
}

// StartRunSpan starts the root span covering one dispatcher run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID, strategy string, lanes int, steps uint64) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, "lanebench run",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("lanebench.run_id", runID),
		attribute.String("lanebench.strategy", strategy),
		attribute.Int("lanebench.lanes", lanes),
		attribute.Int64("lanebench.steps", int64(steps)),
	)
	return ctx, span
}

// StartLaneSpan starts a span covering the lifetime of a worker lane.
func StartLaneSpan(ctx context.Context, tracer trace.Tracer, laneID string) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, "lane "+laneID,
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	span.SetAttributes(attribute.String("lanebench.lane", laneID))
	return ctx, span
}

// AddNotifyEvent attaches a forwarded step notification to span.
func AddNotifyEvent(span trace.Span, text string) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent("notify", trace.WithAttributes(attribute.String("lanebench.notify", text)))
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
