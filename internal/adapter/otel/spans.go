package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mate"

// StartProvisionSpan starts a span for one provisioning run.
func StartProvisionSpan(ctx context.Context, tenantID, subdomain string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provision",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("tenant.subdomain", subdomain),
		),
	)
}

// StartResourceSpan starts a span for one cloud resource creation or wait.
func StartResourceSpan(ctx context.Context, kind, externalID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "resource."+kind,
		trace.WithAttributes(
			attribute.String("resource.kind", kind),
			attribute.String("resource.external_id", externalID),
		),
	)
}

// StartJobSpan starts a span for one dispatched job execution.
func StartJobSpan(ctx context.Context, job, tenantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "job."+job,
		trace.WithAttributes(
			attribute.String("job.name", job),
			attribute.String("tenant.id", tenantID),
		),
	)
}
