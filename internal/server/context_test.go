package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/store"
	"github.com/inboxzero/inboxzero/internal/watch"
)

// fakeMailbox and fakeScheduler only need identity; no method is
// called by the cache.
type fakeMailbox struct {
	watch.Mailbox
	name string
}

type fakeScheduler struct {
	eventdetect.Scheduler
	name string
}

type fakeFactory struct {
	mailboxBuilds  int
	calendarBuilds int
	err            error
}

func (f *fakeFactory) Mailbox(ctx context.Context, account store.Account) (watch.Mailbox, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mailboxBuilds++
	return &fakeMailbox{name: account.Email}, nil
}

func (f *fakeFactory) Calendar(ctx context.Context, account store.Account) (eventdetect.Scheduler, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calendarBuilds++
	return &fakeScheduler{name: account.Email}, nil
}

func TestServerContextCachesClients(t *testing.T) {
	factory := &fakeFactory{}
	sc := NewServerContext(context.Background(), factory)
	account := store.Account{ID: "acc_1", Email: "jane@example.com"}

	first, err := sc.Mailbox(context.Background(), account)
	require.NoError(t, err)
	second, err := sc.Mailbox(context.Background(), account)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.mailboxBuilds)

	_, err = sc.Calendar(context.Background(), account)
	require.NoError(t, err)
	_, err = sc.Calendar(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, factory.calendarBuilds)
}

func TestServerContextSeparateAccounts(t *testing.T) {
	factory := &fakeFactory{}
	sc := NewServerContext(context.Background(), factory)

	a, err := sc.Mailbox(context.Background(), store.Account{ID: "acc_1", Email: "a@example.com"})
	require.NoError(t, err)
	b, err := sc.Mailbox(context.Background(), store.Account{ID: "acc_2", Email: "b@example.com"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, factory.mailboxBuilds)
}

func TestServerContextInvalidateAccount(t *testing.T) {
	factory := &fakeFactory{}
	sc := NewServerContext(context.Background(), factory)
	account := store.Account{ID: "acc_1", Email: "jane@example.com"}

	_, err := sc.Mailbox(context.Background(), account)
	require.NoError(t, err)
	_, err = sc.Calendar(context.Background(), account)
	require.NoError(t, err)

	sc.InvalidateAccount(account.ID)

	_, err = sc.Mailbox(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.mailboxBuilds)
	_, err = sc.Calendar(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.calendarBuilds)
}

func TestServerContextFactoryError(t *testing.T) {
	factory := &fakeFactory{err: assert.AnError}
	sc := NewServerContext(context.Background(), factory)

	_, err := sc.Mailbox(context.Background(), store.Account{ID: "acc_1"})
	assert.Error(t, err)
}

func TestServerContextShutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), &fakeFactory{})

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())

	select {
	case <-sc.Context().Done():
	default:
		t.Fatal("context not canceled after shutdown")
	}

	// Second shutdown is a no-op.
	require.NoError(t, sc.Shutdown())
}
