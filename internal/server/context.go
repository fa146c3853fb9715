package server

import (
	"context"
	"sync"

	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/store"
	"github.com/inboxzero/inboxzero/internal/watch"
)

// ServerContext caches per-account Google clients so the API server
// and the watcher don't rebuild a service client on every request.
// It implements watch.Clients by delegating to an underlying factory
// on cache miss.
type ServerContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	factory watch.Clients

	mu        sync.RWMutex
	mailboxes map[string]watch.Mailbox
	calendars map[string]eventdetect.Scheduler
	shutdown  bool
}

// NewServerContext creates a server context over the client factory.
func NewServerContext(ctx context.Context, factory watch.Clients) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		factory:   factory,
		mailboxes: make(map[string]watch.Mailbox),
		calendars: make(map[string]eventdetect.Scheduler),
	}
}

// Context returns the context canceled on shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mailbox returns a cached Gmail client for the account, building one
// through the factory on first use.
func (sc *ServerContext) Mailbox(ctx context.Context, account store.Account) (watch.Mailbox, error) {
	sc.mu.RLock()
	client, ok := sc.mailboxes[account.ID]
	sc.mu.RUnlock()
	if ok {
		return client, nil
	}

	client, err := sc.factory.Mailbox(ctx, account)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	// Another caller may have built one in the meantime; keep theirs.
	if existing, ok := sc.mailboxes[account.ID]; ok {
		return existing, nil
	}
	sc.mailboxes[account.ID] = client
	return client, nil
}

// Calendar returns a cached Calendar client for the account, building
// one through the factory on first use.
func (sc *ServerContext) Calendar(ctx context.Context, account store.Account) (eventdetect.Scheduler, error) {
	sc.mu.RLock()
	client, ok := sc.calendars[account.ID]
	sc.mu.RUnlock()
	if ok {
		return client, nil
	}

	client, err := sc.factory.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if existing, ok := sc.calendars[account.ID]; ok {
		return existing, nil
	}
	sc.calendars[account.ID] = client
	return client, nil
}

// InvalidateAccount drops cached clients for an account, forcing a
// rebuild on next use. Called after a token refresh is stored through
// the connect flow.
func (sc *ServerContext) InvalidateAccount(accountID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.mailboxes, accountID)
	delete(sc.calendars, accountID)
}

// IsShutdown reports whether the server context has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the context and marks the server as shutting down.
// Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
