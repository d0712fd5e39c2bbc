// Package bootstrap runs the lifecycle shared by every pixelflow command.
//
// An App owns the typed configuration, the logger and the component
// registry. Long-running processes call Run, which blocks until a signal
// arrives; one-shot commands call RunTask, which cancels the task context on
// SIGINT or SIGTERM. Both start components in registration order, run the
// start, configure and ready hooks, and stop everything in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(serverComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
//	    return mountRoutes(a.Cfg)
//	})
//	return app.Run(ctx)
package bootstrap
