package watch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/store"
)

type fakeClients struct {
	mu      sync.Mutex
	builds  int
	blockCh chan struct{} // when set, Mailbox blocks until closed
	mailbox func() *fakeMailbox
}

func (f *fakeClients) Mailbox(ctx context.Context, account store.Account) (Mailbox, error) {
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.mailbox != nil {
		return f.mailbox(), nil
	}
	return newFakeMailbox(), nil
}

func (f *fakeClients) Calendar(ctx context.Context, account store.Account) (eventdetect.Scheduler, error) {
	return fakeCalendar{}, nil
}

func (f *fakeClients) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

func newTestWatcher(t *testing.T, clients Clients) (*Watcher, *store.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := NewPipeline(s, &fakeAssistant{}, logger)
	return New(s, clients, pipeline, testInterval, logger), s
}

const testInterval = 50 * time.Millisecond

func TestRunOnceProcessesAllAccounts(t *testing.T) {
	clients := &fakeClients{mailbox: func() *fakeMailbox {
		m := newFakeMailbox()
		m.inbox = []*gmailapi.Message{{Id: "m1"}}
		m.messages["m1"] = inboxMessage("m1", "sam@example.com")
		m.profile = 10
		return m
	}}
	watcher, s := newTestWatcher(t, clients)
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, store.Account{Email: "jane@example.com"})
	require.NoError(t, err)
	second, err := s.CreateAccount(ctx, store.Account{Email: "joe@example.com"})
	require.NoError(t, err)

	watcher.RunOnce(ctx)
	watcher.Wait()

	assert.Equal(t, 2, clients.buildCount())

	updated, err := s.GetAccount(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), updated.HistoryID)
}

func TestRunOnceSkipsInFlightAccounts(t *testing.T) {
	clients := &fakeClients{blockCh: make(chan struct{})}
	watcher, s := newTestWatcher(t, clients)
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, store.Account{Email: "jane@example.com"})
	require.NoError(t, err)

	// First pass parks inside the client factory.
	watcher.RunOnce(ctx)

	// Second pass must not start the same account again.
	watcher.RunOnce(ctx)

	close(clients.blockCh)
	watcher.Wait()

	assert.Equal(t, 1, clients.buildCount())
}
