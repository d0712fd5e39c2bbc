package observability

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

// Config is the telemetry section of the application config.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ApplyDefaults fills unset telemetry fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Telemetry bundles the providers started by Setup.
type Telemetry struct {
	Metrics   *Metrics
	shutdowns []func(context.Context) error
}

// Shutdown flushes and stops every provider started by Setup.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Setup starts the tracer and meter providers when cfg.Enabled is set and
// returns the run metrics. When disabled it returns metrics backed by a no-op
// meter so callers never need a nil check.
func Setup(ctx context.Context, cfg Config, service, version, environment string) (*Telemetry, error) {
	if !cfg.Enabled {
		m, err := NewMetrics(service, noop.NewMeterProvider().Meter(service))
		if err != nil {
			return nil, err
		}
		return &Telemetry{Metrics: m}, nil
	}

	tel := &Telemetry{}

	svc := Service{Name: service, Version: version, Environment: environment}
	tp, err := InitTracer(ctx, svc, cfg)
	if err != nil {
		return nil, err
	}
	tel.shutdowns = append(tel.shutdowns, tp.Shutdown)

	mp, err := InitMeter(ctx, svc, cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	tel.shutdowns = append(tel.shutdowns, mp.Shutdown)

	tel.Metrics, err = NewMetrics(service, Meter(service))
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	return tel, nil
}
