package replytracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// Gmail labels maintained by the tracker.
const (
	NeedsReplyLabel    = "To Reply"
	AwaitingReplyLabel = "Awaiting Reply"
)

// Mailbox is the slice of the Gmail client the tracker needs.
type Mailbox interface {
	ApplyLabel(ctx context.Context, threadID, labelName string) error
	RemoveLabel(ctx context.Context, threadID, labelName string) error
}

// Tracker keeps reply state per thread.
type Tracker struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a reply tracker.
func New(s *store.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: s, logger: logger}
}

// followUpPhrases mark an outbound message as expecting an answer even
// without a question mark.
var followUpPhrases = []string{
	"let me know",
	"get back to me",
	"follow up",
	"following up",
	"any update",
	"looking forward to hearing",
	"circling back",
}

// AwaitsResponse reports whether an outbound message expects an answer:
// it asks a question or uses an explicit follow-up phrase.
func AwaitsResponse(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}
	lower := strings.ToLower(body)
	for _, phrase := range followUpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ProcessMessage updates the thread's reply state for one new message.
//
// An outbound message resolves any needs-reply tracker (the user
// replied) and opens an awaiting-reply tracker when it expects an
// answer. An inbound message resolves any awaiting-reply tracker (they
// replied) and opens a needs-reply tracker while the thread sits in the
// inbox.
func (t *Tracker) ProcessMessage(ctx context.Context, accountID string, mailbox Mailbox, msg *gmail.ParsedMessage) error {
	if msg.ThreadID == "" {
		return nil
	}

	if err := t.store.ResolveThreadTrackers(ctx, accountID, msg.ThreadID); err != nil {
		return err
	}

	if msg.Sent() {
		if err := mailbox.RemoveLabel(ctx, msg.ThreadID, NeedsReplyLabel); err != nil {
			return fmt.Errorf("remove needs-reply label: %w", err)
		}

		if !AwaitsResponse(msg.Body()) {
			if err := mailbox.RemoveLabel(ctx, msg.ThreadID, AwaitingReplyLabel); err != nil {
				return fmt.Errorf("remove awaiting-reply label: %w", err)
			}
			return nil
		}

		if err := t.store.UpsertReplyTracker(ctx, store.ReplyTracker{
			AccountID: accountID,
			ThreadID:  msg.ThreadID,
			Type:      store.TrackerAwaitingReply,
		}); err != nil {
			return err
		}
		if err := mailbox.ApplyLabel(ctx, msg.ThreadID, AwaitingReplyLabel); err != nil {
			return fmt.Errorf("apply awaiting-reply label: %w", err)
		}

		t.logger.Info("thread awaiting reply",
			logging.Thread(msg.ThreadID),
			logging.Message(msg.ID),
		)
		return nil
	}

	// Inbound: the other side replied.
	if err := mailbox.RemoveLabel(ctx, msg.ThreadID, AwaitingReplyLabel); err != nil {
		return fmt.Errorf("remove awaiting-reply label: %w", err)
	}
	if !msg.InInbox() {
		return nil
	}

	if err := t.store.UpsertReplyTracker(ctx, store.ReplyTracker{
		AccountID: accountID,
		ThreadID:  msg.ThreadID,
		Type:      store.TrackerNeedsReply,
	}); err != nil {
		return err
	}
	if err := mailbox.ApplyLabel(ctx, msg.ThreadID, NeedsReplyLabel); err != nil {
		return fmt.Errorf("apply needs-reply label: %w", err)
	}

	t.logger.Info("thread needs reply",
		logging.Thread(msg.ThreadID),
		logging.Message(msg.ID),
	)
	return nil
}

// Open lists unresolved trackers, optionally filtered by type.
func (t *Tracker) Open(ctx context.Context, accountID, trackerType string) ([]store.ReplyTracker, error) {
	return t.store.ListOpenReplyTrackers(ctx, accountID, trackerType)
}

// Resolve marks a tracker handled without waiting for a reply, e.g.
// when the user decides a thread needs no answer.
func (t *Tracker) Resolve(ctx context.Context, accountID, id string) error {
	return t.store.ResolveReplyTracker(ctx, accountID, id)
}
