// Command pixelflow runs image processing graphs from project files and
// serves them over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/pixelflow/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
