package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/eytandecker/skytour/internal/config"
	"github.com/eytandecker/skytour/internal/logging"
)

// errHostClosed ends the process when the MCP host closes stdin.
var errHostClosed = errors.New("mcp host closed the session")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "skytour exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer := logging.New(cfg.Log, os.Stderr)
	defer closer.Close()
	slog.SetDefault(logger)

	app, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.ingest.Run(ctx) })
	g.Go(func() error { return app.publisher.Run(ctx) })
	g.Go(func() error { return app.machine.Run(ctx) })
	g.Go(func() error { return app.monitor.Run(ctx) })
	if app.display != nil {
		g.Go(func() error { return app.display.Run(ctx) })
	}
	if app.mcp != nil {
		g.Go(func() error {
			err := app.mcp.Run(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				err = errHostClosed
			}
			return err
		})
	}

	logger.Info("skytour started",
		"telemetry", cfg.Telemetry.Source,
		"pois", app.index.Len(),
		"llm", cfg.LLM.Providers,
		"speech", cfg.Speech.Provider,
		"display", cfg.Display.Enabled,
		"mcp", cfg.MCP.Enabled)

	err = g.Wait()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, errHostClosed):
		logger.Info("skytour stopped", "reason", err)
		return nil
	default:
		return err
	}
}
