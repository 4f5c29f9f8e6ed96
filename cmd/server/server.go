package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal.
const shutdownTimeout = 15 * time.Second

// Run starts the scheduler and the HTTP server, then blocks until ctx is
// cancelled and the server has drained.
func (app *application) Run(ctx context.Context) error {
	if err := app.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer app.scheduler.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler: app.setupRouter(),
		// WriteTimeout is deliberately unset: the task stream endpoint
		// holds its connection open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", slog.Int("port", app.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}
