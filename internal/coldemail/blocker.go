package coldemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// BlockLabel is applied to threads from blocked senders.
const BlockLabel = "Cold Email"

// Detector is the slice of the LLM client the blocker needs.
type Detector interface {
	DetectColdEmail(ctx context.Context, email llm.EmailSummary, senderContext string) (*llm.ColdEmailVerdict, error)
}

// Mailbox is the slice of the Gmail client the blocker needs.
type Mailbox interface {
	HasSentTo(ctx context.Context, address string) (bool, error)
	IsKnownContact(ctx context.Context, address string) bool
	ApplyLabel(ctx context.Context, threadID, labelName string) error
	ArchiveThread(ctx context.Context, threadID string) error
	MarkThreadRead(ctx context.Context, threadID string) error
}

// Blocker decides whether incoming mail is a cold email and acts on it.
type Blocker struct {
	store    *store.Store
	detector Detector
	logger   *slog.Logger
}

// New creates a cold email blocker.
func New(s *store.Store, detector Detector, logger *slog.Logger) *Blocker {
	return &Blocker{store: s, detector: detector, logger: logger}
}

// Result describes the blocker's decision for one message.
type Result struct {
	Blocked bool
	Reason  string
}

// Check runs the cold email gate for one message. The decision order
// short-circuits cheap signals before the model:
//
//  1. outbound mail and senderless messages are never cold
//  2. a stored verdict for the sender wins (allowed or blocked)
//  3. known correspondents (sent mail, contacts) are never cold
//  4. otherwise the model decides
//
// Blocked messages are labeled, archived and marked read.
func (b *Blocker) Check(ctx context.Context, accountID string, mailbox Mailbox, msg *gmail.ParsedMessage) (*Result, error) {
	sender := msg.FromEmail
	if sender == "" || msg.Sent() {
		return &Result{Blocked: false}, nil
	}

	prior, err := b.store.GetColdEmail(ctx, accountID, sender)
	switch {
	case err == nil && prior.Status == store.ColdEmailAllowed:
		return &Result{Blocked: false, Reason: "sender allowed"}, nil
	case err == nil && prior.Status == store.ColdEmailBlocked:
		if err := b.block(ctx, mailbox, msg); err != nil {
			return nil, err
		}
		return &Result{Blocked: true, Reason: prior.Reason}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	sent, err := mailbox.HasSentTo(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("check sent mail: %w", err)
	}
	if sent || mailbox.IsKnownContact(ctx, sender) {
		return &Result{Blocked: false, Reason: "known correspondent"}, nil
	}

	verdict, err := b.detector.DetectColdEmail(ctx, llm.EmailSummary{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body(),
		Date:    msg.Date,
	}, "The user has never sent mail to this sender and they are not in the user's contacts.")
	if err != nil {
		return nil, fmt.Errorf("detect cold email: %w", err)
	}
	if !verdict.IsColdEmail {
		return &Result{Blocked: false, Reason: verdict.Reason}, nil
	}

	if err := b.store.UpsertColdEmail(ctx, store.ColdEmail{
		AccountID: accountID,
		Sender:    sender,
		Status:    store.ColdEmailBlocked,
		Reason:    verdict.Reason,
		MessageID: msg.ID,
	}); err != nil {
		return nil, err
	}
	if err := b.block(ctx, mailbox, msg); err != nil {
		return nil, err
	}

	b.logger.Info("cold email blocked",
		logging.Sender(sender),
		logging.Message(msg.ID),
	)
	return &Result{Blocked: true, Reason: verdict.Reason}, nil
}

func (b *Blocker) block(ctx context.Context, mailbox Mailbox, msg *gmail.ParsedMessage) error {
	if err := mailbox.ApplyLabel(ctx, msg.ThreadID, BlockLabel); err != nil {
		return fmt.Errorf("label cold email: %w", err)
	}
	if err := mailbox.ArchiveThread(ctx, msg.ThreadID); err != nil {
		return fmt.Errorf("archive cold email: %w", err)
	}
	if err := mailbox.MarkThreadRead(ctx, msg.ThreadID); err != nil {
		return fmt.Errorf("mark cold email read: %w", err)
	}
	return nil
}

// Allow marks a sender as allowed so their mail skips the blocker.
// Used by the API when the user rescues a sender.
func (b *Blocker) Allow(ctx context.Context, accountID, sender string) error {
	return b.store.UpsertColdEmail(ctx, store.ColdEmail{
		AccountID: accountID,
		Sender:    sender,
		Status:    store.ColdEmailAllowed,
		Reason:    "allowed by user",
	})
}
