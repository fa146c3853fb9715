package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/logging"
)

// Mailer is the slice of the Gmail client the executor needs.
type Mailer interface {
	ArchiveThread(ctx context.Context, threadID string) error
	MarkThreadRead(ctx context.Context, threadID string) error
	MarkThreadAsSpam(ctx context.Context, threadID string) error
	ApplyLabel(ctx context.Context, threadID, labelName string) error
	ReplyToMessage(ctx context.Context, original *gmail.ParsedMessage, body string, isHTML bool) (string, error)
	ForwardMessage(ctx context.Context, original *gmail.ParsedMessage, to []string, note string) (string, error)
	SendEmail(ctx context.Context, msg *gmail.EmailMessage) (string, error)
	CreateReplyDraft(ctx context.Context, original *gmail.ParsedMessage, body string) (string, error)
}

// Executor applies rule actions to messages.
type Executor struct {
	mailer  Mailer
	webhook *http.Client
	logger  *slog.Logger
}

// NewExecutor creates an executor. The webhook client is used for
// call_webhook actions.
func NewExecutor(mailer Mailer, logger *slog.Logger) *Executor {
	return &Executor{
		mailer:  mailer,
		webhook: &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Apply runs all actions of a rule against a message, with template
// args filled in. It stops at the first failing action; the caller
// records the execution status accordingly.
func (e *Executor) Apply(ctx context.Context, rule *Rule, msg *gmail.ParsedMessage, args map[string]string) error {
	for _, action := range rule.Actions {
		action = fillAction(action, args)
		if err := e.applyAction(ctx, rule, action, msg); err != nil {
			return fmt.Errorf("apply action %s: %w", action.Type, err)
		}
		e.logger.Info("action applied",
			logging.Rule(rule.Name),
			logging.Action(action.Type),
			logging.Thread(msg.ThreadID),
			logging.Message(msg.ID),
		)
	}
	return nil
}

func (e *Executor) applyAction(ctx context.Context, rule *Rule, action Action, msg *gmail.ParsedMessage) error {
	switch action.Type {
	case ActionArchive:
		return e.mailer.ArchiveThread(ctx, msg.ThreadID)

	case ActionMarkRead:
		return e.mailer.MarkThreadRead(ctx, msg.ThreadID)

	case ActionMarkSpam:
		return e.mailer.MarkThreadAsSpam(ctx, msg.ThreadID)

	case ActionLabel:
		return e.mailer.ApplyLabel(ctx, msg.ThreadID, action.Label)

	case ActionReply:
		_, err := e.mailer.ReplyToMessage(ctx, msg, action.Content, false)
		return err

	case ActionForward:
		_, err := e.mailer.ForwardMessage(ctx, msg, action.To, action.Content)
		return err

	case ActionSendEmail:
		_, err := e.mailer.SendEmail(ctx, &gmail.EmailMessage{
			To:      action.To,
			Subject: action.Subject,
			Body:    action.Content,
		})
		return err

	case ActionDraft:
		_, err := e.mailer.CreateReplyDraft(ctx, msg, action.Content)
		return err

	case ActionCallWebhook:
		return e.callWebhook(ctx, rule, action.URL, msg)

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// webhookPayload is the JSON body posted by call_webhook actions.
type webhookPayload struct {
	RuleID    string `json:"rule_id"`
	RuleName  string `json:"rule_name"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
}

func (e *Executor) callWebhook(ctx context.Context, rule *Rule, url string, msg *gmail.ParsedMessage) error {
	payload, err := json.Marshal(webhookPayload{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		From:      msg.FromEmail,
		Subject:   msg.Subject,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.webhook.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
