package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// Categories is the fixed category set senders are classified into.
var Categories = []string{
	"newsletter",
	"marketing",
	"receipt",
	"support",
	"personal",
	"cold_outreach",
	"other",
}

// labelPrefix namespaces category labels in Gmail.
const labelPrefix = "InboxZero/"

// maxBatch caps how many senders go into one model call.
const maxBatch = 25

// Classifier is the slice of the LLM client the categorizer needs.
type Classifier interface {
	CategorizeSenders(ctx context.Context, senders []llm.SenderSample, categories []string) ([]llm.SenderCategory, error)
}

// Labeler is the slice of the Gmail client the categorizer needs.
type Labeler interface {
	EnsureLabel(ctx context.Context, name string) (string, error)
	ApplyLabel(ctx context.Context, threadID, labelName string) error
}

// Categorizer batches uncategorized senders through the model and
// persists the results.
type Categorizer struct {
	store      *store.Store
	classifier Classifier
	logger     *slog.Logger
}

// New creates a categorizer.
func New(s *store.Store, classifier Classifier, logger *slog.Logger) *Categorizer {
	return &Categorizer{store: s, classifier: classifier, logger: logger}
}

// Valid reports whether a category is in the fixed set.
func Valid(category string) bool {
	for _, c := range Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Label returns the Gmail label name for a category.
func Label(category string) string {
	words := strings.Fields(strings.ReplaceAll(category, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return labelPrefix + strings.Join(words, " ")
}

// CategoryOf returns a lookup function over the account's stored
// assignments, for use by the rules engine.
func (c *Categorizer) CategoryOf(ctx context.Context, accountID string) func(sender string) string {
	return func(sender string) string {
		sc, err := c.store.GetSenderCategory(ctx, accountID, sender)
		if err != nil {
			return ""
		}
		return sc.Category
	}
}

// Collect extracts sender samples from messages, skipping senders that
// already have a stored category. Samples aggregate subjects per
// sender.
func (c *Categorizer) Collect(ctx context.Context, accountID string, msgs []*gmail.ParsedMessage) ([]llm.SenderSample, error) {
	bySender := make(map[string]*llm.SenderSample)
	var order []string

	for _, msg := range msgs {
		sender := msg.FromEmail
		if sender == "" || msg.Sent() {
			continue
		}

		if sample, ok := bySender[sender]; ok {
			if len(sample.Subjects) < 3 {
				sample.Subjects = append(sample.Subjects, msg.Subject)
			}
			continue
		}

		_, err := c.store.GetSenderCategory(ctx, accountID, sender)
		if err == nil {
			continue // already categorized
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		bySender[sender] = &llm.SenderSample{Address: sender, Subjects: []string{msg.Subject}}
		order = append(order, sender)
	}

	samples := make([]llm.SenderSample, 0, len(order))
	for _, sender := range order {
		samples = append(samples, *bySender[sender])
	}
	return samples, nil
}

// Categorize classifies the given sender samples in batches and
// persists the assignments. Returns the number of senders categorized.
func (c *Categorizer) Categorize(ctx context.Context, accountID string, samples []llm.SenderSample) (int, error) {
	categorized := 0
	for start := 0; start < len(samples); start += maxBatch {
		end := start + maxBatch
		if end > len(samples) {
			end = len(samples)
		}

		results, err := c.classifier.CategorizeSenders(ctx, samples[start:end], Categories)
		if err != nil {
			return categorized, fmt.Errorf("categorize senders: %w", err)
		}

		for _, r := range results {
			err := c.store.UpsertSenderCategory(ctx, store.SenderCategory{
				AccountID: accountID,
				Sender:    r.Address,
				Category:  r.Category,
				Source:    store.CategorySourceLLM,
			})
			if err != nil {
				// One bad row must not lose the batch.
				c.logger.Error("persist sender category",
					logging.Sender(r.Address),
					logging.Err(err),
				)
				continue
			}
			categorized++
		}
	}
	return categorized, nil
}

// LabelThread ensures the sender's category label exists and applies
// it to the message's thread. Uncategorized senders are a no-op.
func (c *Categorizer) LabelThread(ctx context.Context, accountID string, labeler Labeler, msg *gmail.ParsedMessage) error {
	sc, err := c.store.GetSenderCategory(ctx, accountID, msg.FromEmail)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return labeler.ApplyLabel(ctx, msg.ThreadID, Label(sc.Category))
}

// SetManual records a manual category assignment, overriding any model
// assignment.
func (c *Categorizer) SetManual(ctx context.Context, accountID, sender, categoryName string) error {
	if !Valid(categoryName) {
		return fmt.Errorf("unknown category %q", categoryName)
	}
	return c.store.UpsertSenderCategory(ctx, store.SenderCategory{
		AccountID: accountID,
		Sender:    sender,
		Category:  strings.ToLower(categoryName),
		Source:    store.CategorySourceManual,
	})
}
