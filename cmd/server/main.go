// Command server runs the Projeto Sombra API: call upload and pipeline
// tracking, live task streaming, on-demand and scheduled performance
// summaries, and the admin configuration surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/projetosombra/sombra-api/internal/config"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}
