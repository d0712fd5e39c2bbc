package cli

import (
	"context"
	"fmt"

	"github.com/kbukum/pixelflow/bootstrap"
	"github.com/kbukum/pixelflow/cache"
	"github.com/kbukum/pixelflow/component"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/nodes"
	"github.com/kbukum/pixelflow/observability"
	"github.com/kbukum/pixelflow/runner"
)

// engine is what run and serve share: telemetry, the image cache, the node
// registry and a runner over it.
type engine struct {
	telemetry *observability.Telemetry
	images    *cache.Images
	runner    *runner.Runner
}

// newEngine wires the execution stack and registers its components with app
// so they start and stop with it.
func newEngine(ctx context.Context, app *bootstrap.App[*AppConfig]) (*engine, error) {
	cfg := app.Cfg

	tel, err := observability.Setup(ctx, cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if err := app.RegisterComponent(&telemetryComponent{cfg: cfg.Telemetry, tel: tel}); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	images := cache.NewImages(cfg.Execution.Cache)
	if err := app.RegisterComponent(&cacheComponent{cfg: cfg.Execution.Cache, images: images}); err != nil {
		return nil, err
	}

	reg, err := nodes.NewRegistry(nodes.Deps{
		Images:    images,
		OutputDir: cfg.Execution.OutputDir,
		Log:       app.Logger.WithComponent(logger.ComponentNodes),
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(reg,
		runner.WithLogger(app.Logger.WithComponent(logger.ComponentRunner)),
		runner.WithMetrics(tel.Metrics),
	)
	return &engine{telemetry: tel, images: images, runner: r}, nil
}

// telemetryComponent flushes the exporters when the app stops.
type telemetryComponent struct {
	cfg observability.Config
	tel *observability.Telemetry
}

func (c *telemetryComponent) Name() string                { return "telemetry" }
func (c *telemetryComponent) Start(context.Context) error { return nil }
func (c *telemetryComponent) Stop(ctx context.Context) error {
	return c.tel.Shutdown(ctx)
}

func (c *telemetryComponent) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	if c.cfg.Enabled {
		h.Message = "exporting to " + c.cfg.Endpoint
	}
	return h
}

func (c *telemetryComponent) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}

// cacheComponent reports image cache usage and drops entries on stop.
type cacheComponent struct {
	cfg    cache.Config
	images *cache.Images
}

func (c *cacheComponent) Name() string                { return "image-cache" }
func (c *cacheComponent) Start(context.Context) error { return nil }
func (c *cacheComponent) Stop(context.Context) error {
	c.images.Purge()
	return nil
}

func (c *cacheComponent) Health(context.Context) component.Health {
	s := c.images.Stats()
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d entries, %d hits, %d misses", s.Entries, s.Hits, s.Misses),
	}
}

func (c *cacheComponent) Describe() component.Description {
	cfg := c.cfg
	cfg.ApplyDefaults()
	return component.Description{
		Name:    "Image Cache",
		Type:    "cache",
		Details: fmt.Sprintf("lru size=%d ttl=%s", cfg.Size, cfg.TTL),
	}
}
