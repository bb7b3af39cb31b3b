package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/autosave"
	"github.com/MarcoPoloResearchLab/codenotes/internal/config"
	"github.com/MarcoPoloResearchLab/codenotes/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) newServeCommand() *cobra.Command {
	defaults := config.NewViper()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes over a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd, func(app *application) error {
				return runServer(cmd.Context(), app)
			})
		},
	}
	cmd.Flags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.Flags().Int("autosave-delay-ms", defaults.GetInt("autosave.delay_ms"), "Pause after the last edit before it is saved")
	c.bindLocalFlag(cmd, "http.address", "http-address")
	c.bindLocalFlag(cmd, "autosave.delay_ms", "autosave-delay-ms")
	return cmd
}

func runServer(ctx context.Context, app *application) error {
	logger := app.logger

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debouncer, err := autosave.New(autosave.Config{
		Updater: app.store,
		Delay:   app.config.AutosaveDelay,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	dispatcher := server.NewRealtimeDispatcher()
	unsubscribe := app.store.Subscribe(server.NewChangePublisher(dispatcher, time.Now))
	defer unsubscribe()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:    app.store,
		Autosave: debouncer,
		Realtime: dispatcher,
		AppName:  app.config.AppName,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              app.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", app.config.HTTPAddress),
			zap.String("storage_driver", app.config.StorageDriver))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serveErr = httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		serveErr = err
	}

	pending := debouncer.Pending()
	debouncer.Flush()
	debouncer.Stop()
	logger.Info("server stopped", zap.Int("flushed_edits", pending))
	return serveErr
}
