package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/inboxzero/inboxzero/internal/calendar"
	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/google"
	"github.com/inboxzero/inboxzero/internal/instrumentation"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// Clients builds per-account Google clients.
type Clients interface {
	Mailbox(ctx context.Context, account store.Account) (Mailbox, error)
	Calendar(ctx context.Context, account store.Account) (eventdetect.Scheduler, error)
}

// GoogleClients builds real Gmail and Calendar clients from stored
// OAuth tokens.
type GoogleClients struct {
	conf    *oauth2.Config
	tokens  google.TokenProvider
	metrics *instrumentation.Metrics
}

// NewGoogleClients creates a client factory over the OAuth config and
// token provider.
func NewGoogleClients(conf *oauth2.Config, tokens google.TokenProvider) *GoogleClients {
	return &GoogleClients{conf: conf, tokens: tokens}
}

// WithMetrics makes built clients record Google API operation metrics.
// Returns the factory for chaining at construction.
func (g *GoogleClients) WithMetrics(m *instrumentation.Metrics) *GoogleClients {
	g.metrics = m
	return g
}

// Mailbox returns a Gmail client for the account.
func (g *GoogleClients) Mailbox(ctx context.Context, account store.Account) (Mailbox, error) {
	token, err := g.token(ctx, account)
	if err != nil {
		return nil, err
	}
	client, err := gmail.New(ctx, google.HTTPClient(ctx, g.conf, token), account.Email)
	if err != nil {
		return nil, err
	}
	return client.WithMetrics(g.metrics), nil
}

// Calendar returns a Calendar client for the account.
func (g *GoogleClients) Calendar(ctx context.Context, account store.Account) (eventdetect.Scheduler, error) {
	token, err := g.token(ctx, account)
	if err != nil {
		return nil, err
	}
	client, err := calendar.New(ctx, google.HTTPClient(ctx, g.conf, token), account.Email)
	if err != nil {
		return nil, err
	}
	return client.WithMetrics(g.metrics), nil
}

// token loads the account's stored refresh token, recording the
// outcome as an OAuth refresh metric.
func (g *GoogleClients) token(ctx context.Context, account store.Account) (*oauth2.Token, error) {
	token, err := g.tokens.GetTokenForAccount(ctx, account.Email)
	if err != nil {
		g.recordRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("token for %s: %w", logging.AnonymizeEmail(account.Email), err)
	}
	g.recordRefresh(ctx, instrumentation.OAuthResultSuccess)
	return token, nil
}

func (g *GoogleClients) recordRefresh(ctx context.Context, result string) {
	if g.metrics != nil {
		g.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}

// Watcher periodically runs every account through the pipeline.
// Accounts are processed concurrently; an account still running from
// the previous tick is skipped.
type Watcher struct {
	store    *store.Store
	clients  Clients
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// New creates a watcher.
func New(s *store.Store, clients Clients, pipeline *Pipeline, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		store:    s,
		clients:  clients,
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Run ticks until the context is canceled. The first pass starts
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce starts one processing pass over all accounts. Account work
// runs in goroutines; use Wait to block until the pass finishes.
func (w *Watcher) RunOnce(ctx context.Context) {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		w.logger.Error("list accounts", logging.Err(err))
		return
	}

	for _, account := range accounts {
		if !w.acquire(account.ID) {
			w.logger.Info("account still processing, skipping",
				logging.UserHash(account.Email))
			continue
		}

		w.wg.Add(1)
		go func(account store.Account) {
			defer w.wg.Done()
			defer w.release(account.ID)
			w.processAccount(ctx, account)
		}(account)
	}
}

// Wait blocks until all in-flight account runs complete.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) processAccount(ctx context.Context, account store.Account) {
	logger := logging.WithAccount(w.logger, account.Email)

	mailbox, err := w.clients.Mailbox(ctx, account)
	if err != nil {
		logger.Error("gmail client", logging.Err(err))
		return
	}
	cal, err := w.clients.Calendar(ctx, account)
	if err != nil {
		logger.Error("calendar client", logging.Err(err))
		return
	}

	processed, err := w.pipeline.ProcessAccount(ctx, account, mailbox, cal)
	if err != nil {
		logger.Error("process account", logging.Err(err))
		return
	}
	if processed > 0 {
		logger.Info("account processed", slog.Int("messages", processed))
	}
}

func (w *Watcher) acquire(accountID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[accountID]; busy {
		return false
	}
	w.inFlight[accountID] = struct{}{}
	return true
}

func (w *Watcher) release(accountID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, accountID)
}
