package observability

import (
	"context"

	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of spans created here.
const TracerName = "github.com/aretw0/docket"

// Tracer wraps Document.Dispatch in OpenTelemetry spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses provider, or the global provider when nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(TracerName)}
}

// Dispatch runs doc.Dispatch inside a "docket.dispatch" span.
func (t *Tracer) Dispatch(ctx context.Context, doc *document.Document, action domain.Action) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "docket.dispatch",
		trace.WithAttributes(attribute.String("docket.action.type", action.Type)),
	)
	defer span.End()

	handled, err := doc.Dispatch(ctx, action)
	span.SetAttributes(attribute.Bool("docket.action.handled", handled))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return handled, err
}
