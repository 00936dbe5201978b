package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// metricExportInterval is how often OpenTelemetry metrics are pushed.
const metricExportInterval = 30 * time.Second

// SetupMetrics installs a global meter provider pushing to the OTLP/HTTP
// endpoint, which carries the feature_flag counters of the evaluation
// hooks. An empty endpoint leaves the no-op provider in place; the
// Prometheus collectors are served either way. The returned function
// flushes and stops the exporter.
func SetupMetrics(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval))),
		sdkmetric.WithResource(serviceResource()),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
