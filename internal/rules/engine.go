package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// RuleChooser is the slice of the LLM client the engine needs.
type RuleChooser interface {
	ChooseRule(ctx context.Context, email llm.EmailSummary, rules []llm.RuleOption) (*llm.RuleChoice, error)
}

// Engine matches incoming messages against an account's rules and
// executes (or queues) the winning rule's actions.
type Engine struct {
	store    *store.Store
	chooser  RuleChooser
	executor *Executor
	logger   *slog.Logger
}

// NewEngine creates a rules engine.
func NewEngine(s *store.Store, chooser RuleChooser, executor *Executor, logger *slog.Logger) *Engine {
	return &Engine{store: s, chooser: chooser, executor: executor, logger: logger}
}

// Outcome describes what the engine did with a message.
type Outcome struct {
	Matched   bool
	Rule      *Rule
	Status    string // store.ExecutionApplied, ExecutionPending or ExecutionError
	Execution store.ExecutedRule
}

// ProcessMessage runs one message through the account's rules.
// Static conditions are evaluated locally; rules that additionally
// carry AI conditions are batched into a single ChooseRule call. The
// first statically confirmed rule (in creation order) wins over AI
// candidates. Reprocessing a message a rule already ran against is a
// no-op.
func (e *Engine) ProcessMessage(ctx context.Context, accountID string, msg *gmail.ParsedMessage, categoryOf func(sender string) string) (*Outcome, error) {
	rows, err := e.store.ListRules(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	all, err := FromRows(rows)
	if err != nil {
		return nil, err
	}

	var confirmed *Rule
	var candidates []*Rule
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		done, err := e.store.HasExecution(ctx, accountID, r.ID, msg.ID)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}

		switch EvaluateLocal(r, msg, categoryOf) {
		case MatchConfirmed:
			if confirmed == nil {
				confirmed = r
			}
		case MatchNeedsAI:
			candidates = append(candidates, r)
		}
	}

	chosen := confirmed
	var args map[string]string
	if chosen == nil && len(candidates) > 0 {
		chosen, args, err = e.chooseWithAI(ctx, msg, candidates)
		if err != nil {
			return nil, err
		}
	}
	if chosen == nil {
		return &Outcome{Matched: false}, nil
	}

	return e.execute(ctx, accountID, chosen, msg, args)
}

func (e *Engine) chooseWithAI(ctx context.Context, msg *gmail.ParsedMessage, candidates []*Rule) (*Rule, map[string]string, error) {
	options := make([]llm.RuleOption, len(candidates))
	for i, r := range candidates {
		options[i] = llm.RuleOption{Name: r.Name, Instruction: r.AIInstruction()}
	}

	choice, err := e.chooser.ChooseRule(ctx, llm.EmailSummary{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body(),
		Date:    msg.Date,
	}, options)
	if err != nil {
		return nil, nil, fmt.Errorf("choose rule: %w", err)
	}
	if choice.NoMatch {
		return nil, nil, nil
	}

	for _, r := range candidates {
		if r.Name == choice.RuleName {
			return r, choice.ArgsMap(), nil
		}
	}
	return nil, nil, nil
}

func (e *Engine) execute(ctx context.Context, accountID string, rule *Rule, msg *gmail.ParsedMessage, args map[string]string) (*Outcome, error) {
	filled := make([]Action, len(rule.Actions))
	for i, a := range rule.Actions {
		filled[i] = fillAction(a, args)
	}
	actionsJSON, err := json.Marshal(filled)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	status := store.ExecutionPending
	if rule.Automate {
		if err := e.executor.Apply(ctx, rule, msg, args); err != nil {
			e.logger.Error("rule execution failed",
				logging.Rule(rule.Name),
				logging.Message(msg.ID),
				logging.Err(err),
			)
			status = store.ExecutionError
		} else {
			status = store.ExecutionApplied
		}
	}

	execution, err := e.store.RecordExecution(ctx, store.ExecutedRule{
		AccountID: accountID,
		RuleID:    rule.ID,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Status:    status,
		Actions:   string(actionsJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	e.logger.Info("rule matched",
		logging.Rule(rule.Name),
		logging.Message(msg.ID),
		logging.Status(status),
	)

	return &Outcome{Matched: true, Rule: rule, Status: status, Execution: execution}, nil
}

// Test dry-runs a single rule against a message without executing
// actions or recording anything. Used by the rule test endpoint.
func (e *Engine) Test(ctx context.Context, rule *Rule, msg *gmail.ParsedMessage, categoryOf func(sender string) string) (bool, error) {
	switch EvaluateLocal(rule, msg, categoryOf) {
	case MatchConfirmed:
		return true, nil
	case MatchExcluded:
		return false, nil
	}

	choice, err := e.chooser.ChooseRule(ctx, llm.EmailSummary{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body(),
		Date:    msg.Date,
	}, []llm.RuleOption{{Name: rule.Name, Instruction: rule.AIInstruction()}})
	if err != nil {
		return false, fmt.Errorf("choose rule: %w", err)
	}
	return !choice.NoMatch, nil
}
