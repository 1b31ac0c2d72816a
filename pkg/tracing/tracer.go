// Package tracing provides the shared OTel tracer helper.
//
// Without a registered TracerProvider the global no-op provider is used and
// every call is inert, which is the normal situation for the CLI and tests.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "release-qa"

// Start opens a span as a child of the span in ctx. Callers must End it.
//
//	ctx, span := tracing.Start(ctx, "checks.run",
//	    attribute.String("qa.check", check.Name()),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}
