package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/inboxzero/inboxzero/internal/config"
	"github.com/inboxzero/inboxzero/internal/google"
	"github.com/inboxzero/inboxzero/internal/instrumentation"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/server"
	"github.com/inboxzero/inboxzero/internal/store"
	"github.com/inboxzero/inboxzero/internal/watch"
)

// app bundles the service dependencies the subcommands share: storage,
// telemetry, Google OAuth, the LLM client, and the automation pipeline.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	provider  *instrumentation.Provider
	store     *store.Store
	cipher    *google.TokenCipher
	tokens    *google.StoreTokenProvider
	oauthConf *oauth2.Config
	assistant *llm.Client
	pipeline  *watch.Pipeline
	clients   *server.ServerContext
}

// buildApp constructs the full dependency graph from configuration.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Enabled = cfg.TelemetryEnabled
	if cfg.OTLPEndpoint != "" {
		instrConfig.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("create instrumentation provider: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		shutdownErr := provider.Shutdown(ctx)
		return nil, errors.Join(err, shutdownErr)
	}

	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	cipher, err := google.NewTokenCipher(key)
	if err != nil {
		return nil, err
	}
	if !cipher.Enabled() {
		logger.Warn("token encryption disabled, refresh tokens stored in plaintext",
			logging.Operation("startup"))
	}

	tokens := google.NewStoreTokenProvider(st, cipher)
	oauthConf := google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret,
		cfg.PublicBaseURL()+"/auth/google/callback")

	assistant := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel).WithMetrics(provider.Metrics())
	pipeline := watch.NewPipeline(st, assistant, logger).WithMetrics(provider.Metrics())
	factory := watch.NewGoogleClients(oauthConf, tokens).WithMetrics(provider.Metrics())
	clients := server.NewServerContext(ctx, factory)

	return &app{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		store:     st,
		cipher:    cipher,
		tokens:    tokens,
		oauthConf: oauthConf,
		assistant: assistant,
		pipeline:  pipeline,
		clients:   clients,
	}, nil
}

// Close releases everything buildApp acquired, in reverse order.
func (a *app) Close(ctx context.Context) {
	if err := a.clients.Shutdown(); err != nil {
		a.logger.Error("server context shutdown", logging.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close database", logging.Err(err))
	}
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Error("instrumentation shutdown", logging.Err(err))
	}
}

// loadConfigAndLogger is the common prologue of every subcommand.
func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
