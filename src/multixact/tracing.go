package multixact

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = meterName

func newTracer(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return otel.Tracer(tracerName)
	}
	return tracer
}

// traced runs fn inside a span named op. A failure is recorded on the span.
func (m *Manager) traced(op string, fn func() error, attrs ...attribute.KeyValue) error {
	_, span := m.tracer.Start(context.Background(), op, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
