package watch

import (
	"context"
	"log/slog"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/inboxzero/inboxzero/internal/category"
	"github.com/inboxzero/inboxzero/internal/coldemail"
	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/instrumentation"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/newsletter"
	"github.com/inboxzero/inboxzero/internal/replytracker"
	"github.com/inboxzero/inboxzero/internal/rules"
	"github.com/inboxzero/inboxzero/internal/store"
)

// fallbackMaxMessages bounds the recent-inbox query used when the
// stored history ID is missing or too old for Gmail to serve.
const fallbackMaxMessages = 25

// Mailbox is the full Gmail surface the pipeline needs for one account.
type Mailbox interface {
	Profile(ctx context.Context) (email string, historyID uint64, err error)
	ListHistorySince(ctx context.Context, historyID uint64) (added []string, latest uint64, err error)
	ListMessages(ctx context.Context, query string, maxResults int64) ([]*gmailapi.Message, error)
	GetParsedMessage(ctx context.Context, messageID string) (*gmail.ParsedMessage, error)

	HasSentTo(ctx context.Context, address string) (bool, error)
	IsKnownContact(ctx context.Context, address string) bool

	EnsureLabel(ctx context.Context, name string) (string, error)
	ApplyLabel(ctx context.Context, threadID, labelName string) error
	RemoveLabel(ctx context.Context, threadID, labelName string) error
	ArchiveThread(ctx context.Context, threadID string) error
	MarkThreadRead(ctx context.Context, threadID string) error
	MarkThreadAsSpam(ctx context.Context, threadID string) error

	ReplyToMessage(ctx context.Context, original *gmail.ParsedMessage, body string, isHTML bool) (string, error)
	ForwardMessage(ctx context.Context, original *gmail.ParsedMessage, to []string, note string) (string, error)
	SendEmail(ctx context.Context, msg *gmail.EmailMessage) (string, error)
	CreateReplyDraft(ctx context.Context, original *gmail.ParsedMessage, body string) (string, error)
}

// Assistant bundles the LLM operations the pipeline's stages use.
type Assistant interface {
	ChooseRule(ctx context.Context, email llm.EmailSummary, rules []llm.RuleOption) (*llm.RuleChoice, error)
	DetectColdEmail(ctx context.Context, email llm.EmailSummary, senderContext string) (*llm.ColdEmailVerdict, error)
	CategorizeSenders(ctx context.Context, senders []llm.SenderSample, categories []string) ([]llm.SenderCategory, error)
	ExtractEventCandidate(ctx context.Context, email llm.EmailSummary, now time.Time, timezone string) (*llm.EventCandidate, error)
}

// Pipeline runs one account's new messages through every automation
// stage.
type Pipeline struct {
	store       *store.Store
	assistant   Assistant
	blocker     *coldemail.Blocker
	categorizer *category.Categorizer
	tracker     *replytracker.Tracker
	events      *eventdetect.Detector
	newsletters *newsletter.Manager
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger
	logger      *slog.Logger
}

// NewPipeline wires the automation stages around a shared store and
// LLM client.
func NewPipeline(s *store.Store, assistant Assistant, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:       s,
		assistant:   assistant,
		blocker:     coldemail.New(s, assistant, logger),
		categorizer: category.New(s, assistant, logger),
		tracker:     replytracker.New(s, logger),
		events:      eventdetect.New(s, assistant, logger),
		newsletters: newsletter.New(s, logger),
		metrics:     &instrumentation.Metrics{},
		audit:       instrumentation.NewAuditLogger(logger),
		logger:      logger,
	}
}

// WithMetrics sets the recorder for automation metrics. Returns the
// pipeline for chaining at construction.
func (p *Pipeline) WithMetrics(m *instrumentation.Metrics) *Pipeline {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Events exposes the event detector for the API layer.
func (p *Pipeline) Events() *eventdetect.Detector { return p.events }

// Newsletters exposes the newsletter manager for the API layer.
func (p *Pipeline) Newsletters() *newsletter.Manager { return p.newsletters }

// Categorizer exposes the sender categorizer for the API layer.
func (p *Pipeline) Categorizer() *category.Categorizer { return p.categorizer }

// Tracker exposes the reply tracker for the API layer.
func (p *Pipeline) Tracker() *replytracker.Tracker { return p.tracker }

// Blocker exposes the cold email blocker for the API layer.
func (p *Pipeline) Blocker() *coldemail.Blocker { return p.blocker }

// ProcessAccount fetches the account's new messages and runs each one
// through the pipeline. Per-message failures are logged and processing
// continues. The stored history ID advances on success. Returns the
// number of messages processed.
func (p *Pipeline) ProcessAccount(ctx context.Context, account store.Account, mailbox Mailbox, cal eventdetect.Scheduler) (int, error) {
	logger := logging.WithAccount(p.logger, account.Email)

	ids, latest, err := p.newMessageIDs(ctx, account, mailbox, logger)
	if err != nil {
		return 0, err
	}

	engine := rules.NewEngine(p.store, p.assistant, rules.NewExecutor(mailbox, logger), logger)
	categoryOf := p.categorizer.CategoryOf(ctx, account.ID)

	processed := 0
	for _, id := range ids {
		msg, err := mailbox.GetParsedMessage(ctx, id)
		if err != nil {
			logger.Error("fetch message", logging.Message(id), logging.Err(err))
			continue
		}
		p.processMessage(ctx, account, engine, mailbox, cal, categoryOf, msg, logger)
		processed++
	}

	if latest > account.HistoryID {
		if err := p.store.UpdateHistoryID(ctx, account.ID, latest); err != nil {
			return processed, err
		}
	}
	return processed, nil
}

// newMessageIDs lists message IDs added since the stored history ID.
// Gmail serves history for about a week; when the stored ID is missing
// or expired the recent inbox is used instead and the history baseline
// is reset from the profile.
func (p *Pipeline) newMessageIDs(ctx context.Context, account store.Account, mailbox Mailbox, logger *slog.Logger) ([]string, uint64, error) {
	if account.HistoryID > 0 {
		added, latest, err := mailbox.ListHistorySince(ctx, account.HistoryID)
		if err == nil {
			return added, latest, nil
		}
		logger.Warn("history listing failed, falling back to inbox query", logging.Err(err))
	}

	msgs, err := mailbox.ListMessages(ctx, "in:inbox", fallbackMaxMessages)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.Id)
	}

	_, latest, err := mailbox.Profile(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ids, latest, nil
}

// processMessage runs one message through every stage. A blocked cold
// email skips the remaining stages; any other stage failure is logged
// and the rest still run.
func (p *Pipeline) processMessage(ctx context.Context, account store.Account, engine *rules.Engine, mailbox Mailbox, cal eventdetect.Scheduler, categoryOf func(string) string, msg *gmail.ParsedMessage, logger *slog.Logger) {
	result, err := p.blocker.Check(ctx, account.ID, mailbox, msg)
	if err != nil {
		logger.Error("cold email check", logging.Message(msg.ID), logging.Err(err))
	} else if result.Blocked {
		p.metrics.RecordColdEmail(ctx, "blocked")
		p.audit.LogAction(instrumentation.NewAutomationAction("cold_email", "block").
			WithUser(account.Email).
			WithTarget(msg.ID, msg.ThreadID).
			CompleteSuccess())
		return
	}

	outcome, err := engine.ProcessMessage(ctx, account.ID, msg, categoryOf)
	if err != nil {
		logger.Error("rules", logging.Message(msg.ID), logging.Err(err))
	} else if outcome.Matched {
		p.metrics.RecordRuleExecution(ctx, outcome.Rule.Actions[0].Type, outcome.Status, account.Email)
		p.audit.LogAction(instrumentation.NewAutomationAction("rules", outcome.Rule.Actions[0].Type).
			WithUser(account.Email).
			WithRule(outcome.Rule.Name).
			WithTarget(msg.ID, msg.ThreadID).
			Complete(outcome.Status != store.ExecutionError, nil))
	}

	if msg.FromEmail != "" && !msg.Sent() {
		if err := p.categorizeSender(ctx, account.ID, mailbox, msg); err != nil {
			logger.Error("categorize sender", logging.Message(msg.ID), logging.Err(err))
		}
		if categoryOf(msg.FromEmail) == "newsletter" {
			if err := p.newsletters.Observe(ctx, account.ID, mailbox, msg); err != nil {
				logger.Error("newsletter", logging.Message(msg.ID), logging.Err(err))
			}
		}
	}

	if err := p.tracker.ProcessMessage(ctx, account.ID, mailbox, msg); err != nil {
		logger.Error("reply tracker", logging.Message(msg.ID), logging.Err(err))
	}

	suggestion, err := p.events.ProcessMessage(ctx, account.ID, cal, msg)
	if err != nil {
		logger.Error("event detection", logging.Message(msg.ID), logging.Err(err))
	} else if suggestion != nil {
		p.metrics.RecordEventSuggestion(ctx, "suggested")
	}
}

func (p *Pipeline) categorizeSender(ctx context.Context, accountID string, mailbox Mailbox, msg *gmail.ParsedMessage) error {
	samples, err := p.categorizer.Collect(ctx, accountID, []*gmail.ParsedMessage{msg})
	if err != nil {
		return err
	}
	if len(samples) > 0 {
		if _, err := p.categorizer.Categorize(ctx, accountID, samples); err != nil {
			return err
		}
	}
	return p.categorizer.LabelThread(ctx, accountID, mailbox, msg)
}
