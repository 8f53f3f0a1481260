package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsProvider wraps the OpenTelemetry meter provider backed by the
// Prometheus exporter. Metrics land in the default Prometheus registry
// and are served by the /metrics endpoint.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
}

// InitializeMetrics sets up the global OpenTelemetry meter provider with
// a Prometheus reader.
func InitializeMetrics(logger *slog.Logger) (*MetricsProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	if logger != nil {
		logger.Info("metrics provider initialized",
			slog.String("exporter", "prometheus"),
		)
	}

	return &MetricsProvider{provider: provider}, nil
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
