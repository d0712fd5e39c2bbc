package cli

import (
	"context"
	"fmt"

	"github.com/kbukum/pixelflow/api"
	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/bootstrap"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/runner"
	"github.com/kbukum/pixelflow/server"
	"github.com/kbukum/pixelflow/server/middleware"
	"github.com/kbukum/pixelflow/sse"
)

const eventsPath = "/api/v1/runs/:id/events"

func (e *env) serve(ctx context.Context, args []string) int {
	fs := e.flagSet("serve")
	configPath := fs.StringP("config", "c", "", "configuration file")
	port := fs.IntP("port", "p", 0, "listen port (overrides server.port)")
	if code, ok := e.parse(fs, args, 0); !ok {
		return code
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(e.stderr, "serve: %v\n", err)
		return ExitUsage
	}
	if fs.Changed("port") {
		cfg.Server.Port = *port
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(e.stdout))
	if err != nil {
		fmt.Fprintf(e.stderr, "serve: %v\n", err)
		return ExitUsage
	}
	if err := setupServer(ctx, app); err != nil {
		return e.fail(err)
	}
	if err := app.Run(ctx); err != nil {
		return e.fail(err)
	}
	return ExitSuccess
}

// setupServer registers the execution stack, the event hub and the HTTP
// server with app. Runs and event streams are cancelled before the server
// shuts down so open streams do not hold it up.
func setupServer(ctx context.Context, app *bootstrap.App[*AppConfig]) error {
	cfg := app.Cfg

	eng, err := newEngine(ctx, app)
	if err != nil {
		return err
	}
	runs := runner.NewStore(cfg.Execution.Runs)
	events := sse.NewComponent(eventsPath)

	srv := server.New(cfg.Server, app.Logger.WithComponent(logger.ComponentServer))
	srv.SetMetrics(eng.telemetry.Metrics)
	srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)
	srv.SetStats(func(context.Context) map[string]any {
		return map[string]any{
			"runs":        runs.Len(),
			"image_cache": eng.images.Stats(),
			"sse_clients": events.Hub().ClientCount(),
		}
	})

	var parser middleware.TokenParser
	if cfg.Auth.Enabled {
		svc, err := auth.NewService(cfg.Auth)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		parser = svc
	}

	api.NewHandler(eng.runner, runs, events.Hub(), api.Config{
		BaseDir:    cfg.Execution.WorkDir,
		Timeout:    cfg.Execution.Timeout,
		MaxTimeout: cfg.Execution.MaxTimeout,
	}).Register(srv.Engine(), parser)

	if err := app.RegisterComponent(events); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	app.OnReady(func(context.Context) error {
		app.Logger.Info("api ready", logger.Fields("addr", srv.Addr(), "auth", cfg.Auth.Describe()))
		return nil
	})
	app.OnStop(func(context.Context) error {
		runs.CancelAll()
		events.Hub().Stop()
		return nil
	})
	return nil
}
