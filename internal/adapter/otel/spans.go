package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tenancy"

// StartResolutionSpan starts a span for one tagged resolution attempt.
func StartResolutionSpan(ctx context.Context, attemptID, userID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "resolution",
		trace.WithAttributes(
			attribute.String("resolution.attempt_id", attemptID),
			attribute.String("resolution.user_id", userID),
		),
	)
}

// StartMutationSpan starts a span for a settings/usage write-through.
func StartMutationSpan(ctx context.Context, tenantID, field string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "mutation",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("mutation.field", field),
		),
	)
}
