package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestNewMetricsNoop(t *testing.T) {
	metrics, err := NewMetrics("pixelflow", noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordNodeRun(ctx, "Blur", StatusCompleted, 10*time.Millisecond)
	metrics.RecordGraphRunStart(ctx)
	metrics.RecordGraphRunEnd(ctx, StatusCompleted, time.Second)
	metrics.RecordRequest(ctx, "POST", "/api/v1/runs", 200, 5*time.Millisecond)
	metrics.RecordError(ctx, "NODE_EXECUTION_FAILED", "dag")
}

func TestMetricsAreExported(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics("pixelflow", mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordNodeRun(ctx, "Resize", StatusFailed, time.Millisecond)
	metrics.RecordGraphRunStart(ctx)
	metrics.RecordGraphRunEnd(ctx, StatusCancelled, time.Millisecond)

	names := collectMetricNames(t, reader)
	for _, want := range []string{
		"pixelflow.node.runs",
		"pixelflow.node.duration",
		"pixelflow.graph.runs",
		"pixelflow.graph.duration",
		"pixelflow.graph.active",
	} {
		if !names[want] {
			t.Errorf("expected metric %q, got %v", want, names)
		}
	}
}

func TestRunScopeRecordsSpan(t *testing.T) {
	exporter := installRecorder(t)

	scope := NewRunScope("run-1", nil)
	ctx := scope.Start(context.Background(), 3, 2)

	if RunScopeFromContext(ctx) != scope {
		t.Fatal("expected scope in context")
	}
	if TraceID(ctx) == "" {
		t.Error("expected a trace id while the run span is open")
	}
	scope.End(ctx, StatusFailed, fmt.Errorf("node failed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanGraphRun {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status)
	}
	if scope.Duration() <= 0 {
		t.Error("expected positive duration")
	}
}

func TestRunScopeFromContextNotSet(t *testing.T) {
	if RunScopeFromContext(context.Background()) != nil {
		t.Error("expected nil scope")
	}
	if NewRunScope("x", nil).Duration() != 0 {
		t.Error("unstarted scope has zero duration")
	}
}

func TestAnnotateAndError(t *testing.T) {
	exporter := installRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanNodeExecute, attribute.String(AttrNodeClass, "BlurNode"))
	Annotate(ctx, attribute.String(AttrNodeName, "Blur"), attribute.Int(AttrHTTPStatus, 200))
	SetSpanError(ctx, nil)
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := len(spans[0].Attributes); got != 3 {
		t.Errorf("expected 3 attributes, got %d", got)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected only the non-nil error event, got %v", spans[0].Events)
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	Annotate(ctx, attribute.String("key", "value"))
	SetSpanError(ctx, fmt.Errorf("no span"))
	if TraceID(ctx) != "" {
		t.Error("expected empty trace id")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("sample rate = %v", cfg.SampleRate)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("interval = %v", cfg.Interval)
	}
}

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), Config{}, "pixelflow", "dev", "development")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel.Metrics == nil {
		t.Fatal("expected no-op metrics")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := Service{Name: "pixelflow", Version: "1.2.3", Environment: "test"}.resource()
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if res == nil || res.Len() == 0 {
		t.Error("expected attributes on resource")
	}
}
