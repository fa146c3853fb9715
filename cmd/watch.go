package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/server"
	"github.com/inboxzero/inboxzero/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run only the periodic watcher over all connected accounts",
		Long: `Run the background watcher loop without the HTTP API: every interval,
each connected account's new messages are fetched and run through the
automation pipeline. Per-account failures are logged and the loop
continues with the remaining accounts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
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

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && app.provider.Enabled() {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr)
		if err := startMetricsServer(metricsServer); err != nil {
			return err
		}
	}

	watcher := watch.New(app.store, app.clients, app.pipeline, cfg.WatchInterval, logger)

	logger.Info("watcher started",
		logging.Operation("watch"),
		"interval", cfg.WatchInterval.String(),
	)

	err = watcher.Run(ctx)
	watcher.Wait()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", logging.Err(err))
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("watcher stopped", logging.Operation("watch"))
	return nil
}
