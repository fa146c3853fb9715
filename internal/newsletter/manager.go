package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// Mailbox is the slice of the Gmail client the manager needs.
type Mailbox interface {
	ArchiveThread(ctx context.Context, threadID string) error
	MarkThreadRead(ctx context.Context, threadID string) error
}

// Manager tracks newsletter senders and actions the user's decisions.
type Manager struct {
	store  *store.Store
	logger *slog.Logger

	// unsubscribe performs the HTTP unsubscribe request. Swappable in
	// tests.
	unsubscribe func(ctx context.Context, url string) error
}

// New creates a newsletter manager.
func New(s *store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:       s,
		logger:      logger,
		unsubscribe: gmail.UnsubscribeViaHTTP,
	}
}

// Observe records a newsletter message flowing through the pipeline.
// The sender's unsubscribe link is captured from the List-Unsubscribe
// header; an existing record keeps its status. Senders marked
// auto_archived have the message archived and marked read.
func (m *Manager) Observe(ctx context.Context, accountID string, mailbox Mailbox, msg *gmail.ParsedMessage) error {
	sender := msg.FromEmail
	if sender == "" || msg.Sent() {
		return nil
	}

	status := store.NewsletterApproved
	existing, err := m.store.GetNewsletter(ctx, accountID, sender)
	if err == nil {
		status = existing.Status
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	link := gmail.PreferredUnsubscribeLink(msg.ListUnsubscribe)
	if err := m.store.UpsertNewsletter(ctx, store.Newsletter{
		AccountID:       accountID,
		Sender:          sender,
		Status:          status,
		UnsubscribeLink: link,
	}); err != nil {
		return err
	}

	if status != store.NewsletterAutoArchived || msg.ThreadID == "" {
		return nil
	}

	if err := mailbox.ArchiveThread(ctx, msg.ThreadID); err != nil {
		return fmt.Errorf("auto-archive newsletter: %w", err)
	}
	if err := mailbox.MarkThreadRead(ctx, msg.ThreadID); err != nil {
		return fmt.Errorf("mark newsletter read: %w", err)
	}

	m.logger.Info("newsletter auto-archived",
		logging.Sender(sender),
		logging.Thread(msg.ThreadID),
	)
	return nil
}

// Unsubscribe actions the stored unsubscribe link for a sender and
// records the unsubscribed status.
func (m *Manager) Unsubscribe(ctx context.Context, accountID, sender string) error {
	n, err := m.store.GetNewsletter(ctx, accountID, sender)
	if err != nil {
		return err
	}
	if n.UnsubscribeLink == "" {
		return fmt.Errorf("no unsubscribe link recorded for %s", sender)
	}
	if strings.HasPrefix(n.UnsubscribeLink, "mailto:") {
		return fmt.Errorf("sender %s only offers mailto unsubscribe", sender)
	}

	if err := m.unsubscribe(ctx, n.UnsubscribeLink); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", sender, err)
	}

	n.Status = store.NewsletterUnsubscribed
	if err := m.store.UpsertNewsletter(ctx, n); err != nil {
		return err
	}

	m.logger.Info("unsubscribed from newsletter", logging.Sender(sender))
	return nil
}

// SetStatus records the user's decision for a sender.
func (m *Manager) SetStatus(ctx context.Context, accountID, sender, status string) error {
	switch status {
	case store.NewsletterApproved, store.NewsletterUnsubscribed, store.NewsletterAutoArchived:
	default:
		return fmt.Errorf("unknown newsletter status %q", status)
	}
	return m.store.UpsertNewsletter(ctx, store.Newsletter{
		AccountID: accountID,
		Sender:    sender,
		Status:    status,
	})
}

// List returns the account's newsletter records.
func (m *Manager) List(ctx context.Context, accountID string) ([]store.Newsletter, error) {
	return m.store.ListNewsletters(ctx, accountID)
}
