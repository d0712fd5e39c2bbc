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

	"github.com/kbukum/pixelflow/logger"
)

// InitMeter exports metrics to cfg.Endpoint over OTLP/HTTP every
// cfg.Interval and installs the provider globally. The caller shuts the
// provider down.
func InitMeter(ctx context.Context, svc Service, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := svc.resource()
	if err != nil {
		return nil, fmt.Errorf("metric resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("metrics export enabled", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.Interval.String()))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by graph runs and the HTTP API.
type Metrics struct {
	service          string
	nodeRunTotal     metric.Int64Counter
	nodeRunDuration  metric.Float64Histogram
	graphRunTotal    metric.Int64Counter
	graphRunDuration metric.Float64Histogram
	graphRunsActive  metric.Int64UpDownCounter
	requestTotal     metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorTotal       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(service string, meter metric.Meter) (*Metrics, error) {
	nodeRunTotal, err := meter.Int64Counter("pixelflow.node.runs",
		metric.WithDescription("Node executions by class and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.node.runs counter: %w", err)
	}

	nodeRunDuration, err := meter.Float64Histogram("pixelflow.node.duration",
		metric.WithDescription("Duration of node executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.node.duration histogram: %w", err)
	}

	graphRunTotal, err := meter.Int64Counter("pixelflow.graph.runs",
		metric.WithDescription("Graph runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.graph.runs counter: %w", err)
	}

	graphRunDuration, err := meter.Float64Histogram("pixelflow.graph.duration",
		metric.WithDescription("Duration of graph runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.graph.duration histogram: %w", err)
	}

	graphRunsActive, err := meter.Int64UpDownCounter("pixelflow.graph.active",
		metric.WithDescription("Graph runs currently executing"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.graph.active gauge: %w", err)
	}

	requestTotal, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.server.requests counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Duration of API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.server.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("pixelflow.errors",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pixelflow.errors counter: %w", err)
	}

	return &Metrics{
		service:          service,
		nodeRunTotal:     nodeRunTotal,
		nodeRunDuration:  nodeRunDuration,
		graphRunTotal:    graphRunTotal,
		graphRunDuration: graphRunDuration,
		graphRunsActive:  graphRunsActive,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		errorTotal:       errorTotal,
	}, nil
}

// RecordNodeRun records one node execution.
func (m *Metrics) RecordNodeRun(ctx context.Context, className, status string, duration time.Duration) {
	m.nodeRunTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", m.service),
		attribute.String("class", className),
		attribute.String("status", status),
	))
	m.nodeRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", m.service),
		attribute.String("class", className),
	))
}

// RecordGraphRunStart increments the active run count.
func (m *Metrics) RecordGraphRunStart(ctx context.Context) {
	m.graphRunsActive.Add(ctx, 1)
}

// RecordGraphRunEnd decrements active runs and records the finished run.
func (m *Metrics) RecordGraphRunEnd(ctx context.Context, status string, duration time.Duration) {
	m.graphRunsActive.Add(ctx, -1)
	m.graphRunTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", m.service),
		attribute.String("status", status),
	))
	m.graphRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", m.service),
	))
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordError records an error by code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
