package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpapi "github.com/radwerk/reportd/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reportd HTTP API",
	Long: `Start the HTTP server exposing ingestion, query and generation
endpoints. The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	// Avoid a typed-nil Generator when generation is not configured.
	var generator httpapi.Generator
	if app.generator != nil {
		generator = app.generator
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Host: app.cfg.Server.Host,
		Port: app.cfg.Server.Port,
	}, app.pipeline, app.store, generator, app.logger, httpapi.NewMetrics(app.logger))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		app.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("shutdown failed", zap.Error(err))
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
