package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inboxzero/inboxzero/internal/api"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/server"
	"github.com/inboxzero/inboxzero/internal/watch"
)

const (
	httpReadHeaderTimeout = 10 * time.Second
	httpIdleTimeout       = 60 * time.Second
	shutdownTimeout       = 30 * time.Second
	metricsStartupTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the background inbox watcher",
		Long: `Run the full service: the HTTP JSON API, the Google account connect
flow, the Prometheus metrics server on its own port, and the periodic
watcher that triages every connected account's new mail.

Configuration comes from INBOXZERO_* environment variables (a .env
file is loaded outside production). Google OAuth client credentials
and the database path are required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		app.Close(closeCtx)
	}()

	watcher := watch.New(app.store, app.clients, app.pipeline, cfg.WatchInterval, logger)
	apiHandler := api.New(app.store, app.pipeline, app.clients, app.assistant, app.provider.Metrics(), logger)
	connect := server.NewConnectHandler(app.oauthConf, app.store, app.cipher, app.clients, logger)
	health := server.NewHealthChecker(app.clients, app.store)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler.Routes())
	connect.Register(mux)
	health.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	// Metrics on a dedicated port so scrape traffic stays off the API
	// listener. Startup failures abort serve instead of racing on.
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && app.provider.Enabled() {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr)
		if err := startMetricsServer(metricsServer); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("api server listening",
			logging.Operation("serve"),
			"addr", cfg.HTTPAddr,
			"base_url", cfg.PublicBaseURL(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		_ = watcher.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received", logging.Operation("serve"))
	case err := <-serverErr:
		cancel()
		<-watcherDone
		return fmt.Errorf("api server: %w", err)
	}

	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", logging.Err(err))
		}
	}

	// In-flight account runs finish before the store closes.
	<-watcherDone
	watcher.Wait()

	logger.Info("server stopped", logging.Operation("serve"))
	return nil
}

// startMetricsServer starts the metrics listener and waits for it to
// bind, so port conflicts surface at startup.
func startMetricsServer(s *server.MetricsServer) error {
	ready := make(chan struct{})
	failed := make(chan error, 1)
	go func() {
		if err := s.Start(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case <-ready:
		return nil
	case err := <-failed:
		return fmt.Errorf("metrics server: %w", err)
	case <-time.After(metricsStartupTimeout):
		return fmt.Errorf("metrics server startup timed out")
	}
}
