// Tracing instrumentation for the loop.
package executor

import (
	"context"
	"strings"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startLoopSpan starts a span for one loop invocation.
func startLoopSpan(ctx context.Context, req Request) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "loop."+req.Role)
	span.SetAttributes(
		attribute.String("loop.role", req.Role),
		attribute.String("loop.tools", strings.Join(req.Allowed, ",")),
		attribute.String("session.id", req.SessionID),
	)
	return ctx, span
}

// endLoopSpan ends the loop span with result info.
func endLoopSpan(span trace.Span, result *Result, err error) {
	tracer := telemetry.GetTracer()
	span.SetAttributes(
		attribute.Int("loop.iterations", result.Iterations),
		attribute.Int("loop.tool_calls", result.ToolCalls),
	)
	if tracer.Debug() && result.Output != "" {
		span.SetAttributes(attribute.String("loop.output", truncateForLog(result.Output, 2000)))
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
