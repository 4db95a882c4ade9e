package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docpipe/docpipe/job"
)

// tracerName is the instrumentation scope name for pipeline tracing.
const tracerName = "github.com/docpipe/docpipe"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: docpipe.job.id, docpipe.document.id,
// docpipe.document.type, docpipe.job.attempt, docpipe.user.id.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "docpipe.job.process",
			trace.WithAttributes(
				attribute.String("docpipe.job.id", j.ID.String()),
				attribute.String("docpipe.document.id", j.DocumentID),
				attribute.String("docpipe.document.type", j.DocumentTypeID),
				attribute.Int("docpipe.job.attempt", j.Attempts),
				attribute.String("docpipe.user.id", j.UserID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
