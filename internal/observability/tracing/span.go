package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/bakehouse/pkg/apperror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/smallbiznis/bakehouse"

// Start opens a span on the global tracer provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it. Domain rejections are
// tagged with their kind but do not mark the span as failed.
func End(span trace.Span, err error) {
	if err != nil {
		kind := apperror.KindOf(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		if kind == apperror.KindInternal {
			span.RecordError(SafeError(err))
			span.SetStatus(codes.Error, "internal error")
		}
	}
	span.End()
}

// SafeError strips driver detail from err before it is attached to a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if code := apperror.CodeOf(err); code != "" {
		return errors.New(code)
	}
	return errors.New("internal_error")
}
