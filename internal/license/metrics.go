package license

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tktcli/license"

// startSpan opens a span on the global tracer provider.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op, trace.WithAttributes(attrs...))
}

// endSpan records the operation outcome and closes the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Metrics holds the OpenTelemetry instruments for license operations.
type Metrics struct {
	activations      metric.Int64Counter
	validations      metric.Int64Counter
	offlineFallbacks metric.Int64Counter
}

// NewMetrics creates the license metric instruments on the global meter
// provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("tktcli/license")

	activations, err := meter.Int64Counter("license_activations_total",
		metric.WithDescription("License activation attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create activation counter: %w", err)
	}

	validations, err := meter.Int64Counter("license_validations_total",
		metric.WithDescription("Startup license validations by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create validation counter: %w", err)
	}

	offlineFallbacks, err := meter.Int64Counter("license_offline_fallbacks_total",
		metric.WithDescription("Offline fallback evaluations by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create offline fallback counter: %w", err)
	}

	return &Metrics{
		activations:      activations,
		validations:      validations,
		offlineFallbacks: offlineFallbacks,
	}, nil
}

func (m *Metrics) recordActivation(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(outcomeAttr(success)))
}

func (m *Metrics) recordValidation(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(outcomeAttr(success)))
}

func (m *Metrics) recordOfflineFallback(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.offlineFallbacks.Add(ctx, 1, metric.WithAttributes(outcomeAttr(success)))
}

func outcomeAttr(success bool) attribute.KeyValue {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	return attribute.String("outcome", outcome)
}
