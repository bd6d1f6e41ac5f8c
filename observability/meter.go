package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/skillsenselab/harnesskit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// ConnectionMetrics holds the metric instruments for connection lifecycle
// observability.
type ConnectionMetrics struct {
	eventTotal       metric.Int64Counter
	connectionActive metric.Int64UpDownCounter
	commandTotal     metric.Int64Counter
	commandDuration  metric.Float64Histogram
}

// NewConnectionMetrics creates the connection instruments on the given meter.
func NewConnectionMetrics(meter metric.Meter) (*ConnectionMetrics, error) {
	eventTotal, err := meter.Int64Counter("connection.event.total",
		metric.WithDescription("Connection lifecycle events by type and service type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connection.event.total counter: %w", err)
	}

	connectionActive, err := meter.Int64UpDownCounter("connection.active",
		metric.WithDescription("Number of currently pooled connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connection.active gauge: %w", err)
	}

	commandTotal, err := meter.Int64Counter("command.total",
		metric.WithDescription("Commands executed over managed connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.total counter: %w", err)
	}

	commandDuration, err := meter.Float64Histogram("command.duration",
		metric.WithDescription("Duration of command executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration histogram: %w", err)
	}

	return &ConnectionMetrics{
		eventTotal:       eventTotal,
		connectionActive: connectionActive,
		commandTotal:     commandTotal,
		commandDuration:  commandDuration,
	}, nil
}

// RecordEvent records one lifecycle event and adjusts the active gauge.
func (m *ConnectionMetrics) RecordEvent(ctx context.Context, eventType, serviceType string) {
	m.eventTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventType),
		attribute.String("service_type", serviceType),
	))

	serviceAttr := metric.WithAttributes(attribute.String("service_type", serviceType))
	switch eventType {
	case "created":
		m.connectionActive.Add(ctx, 1, serviceAttr)
	case "closed":
		m.connectionActive.Add(ctx, -1, serviceAttr)
	}
}

// RecordCommand records a command execution over a managed connection.
func (m *ConnectionMetrics) RecordCommand(ctx context.Context, serviceType, status string, duration time.Duration) {
	m.commandTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service_type", serviceType),
		attribute.String("status", status),
	))
	m.commandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service_type", serviceType),
	))
}
