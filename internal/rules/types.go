package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition kinds.
const (
	ConditionStatic   = "static"   // substring or regexp match on headers/body
	ConditionCategory = "category" // sender category lookup
	ConditionAI       = "ai"       // natural-language instruction for the model
)

// Conjunctions.
const (
	ConjunctionAnd = "AND"
	ConjunctionOr  = "OR"
)

// Action kinds.
const (
	ActionArchive     = "archive"
	ActionLabel       = "label"
	ActionMarkRead    = "mark_read"
	ActionMarkSpam    = "mark_spam"
	ActionReply       = "reply"
	ActionForward     = "forward"
	ActionSendEmail   = "send_email"
	ActionDraft       = "draft"
	ActionCallWebhook = "call_webhook"
)

// Condition is one matching criterion of a rule. Which fields apply
// depends on Type.
type Condition struct {
	Type string `json:"type"`

	// static: case-insensitive substring matches, empty fields ignored.
	// With Regexp set the fields are Go regular expressions instead,
	// matched as written (prefix with (?i) for case-insensitivity).
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	Regexp  bool   `json:"regexp,omitempty"`

	// category: matches when the sender's category is in the set.
	Categories []string `json:"categories,omitempty"`

	// ai: instruction evaluated by the model.
	Instruction string `json:"instruction,omitempty"`
}

// Action is one effect of a matched rule. Content fields may contain
// {{placeholder}} template fields filled from model-extracted args.
type Action struct {
	Type string `json:"type"`

	Label   string   `json:"label,omitempty"`   // label
	To      []string `json:"to,omitempty"`      // forward, send_email
	Subject string   `json:"subject,omitempty"` // send_email
	Content string   `json:"content,omitempty"` // reply, forward note, send_email, draft
	URL     string   `json:"url,omitempty"`     // call_webhook
}

// Rule is the domain form of an automation rule.
type Rule struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"-"`
	Name        string      `json:"name"`
	Conditions  []Condition `json:"conditions"`
	Conjunction string      `json:"conjunction"`
	Actions     []Action    `json:"actions"`
	Enabled     bool        `json:"enabled"`
	Automate    bool        `json:"automate"`
}

// Validate checks structural invariants before a rule is persisted.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule needs at least one condition")
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule needs at least one action")
	}
	switch r.Conjunction {
	case "", ConjunctionAnd, ConjunctionOr:
	default:
		return fmt.Errorf("invalid conjunction %q", r.Conjunction)
	}

	for i, c := range r.Conditions {
		switch c.Type {
		case ConditionStatic:
			if c.From == "" && c.To == "" && c.Subject == "" && c.Body == "" {
				return fmt.Errorf("condition %d: static condition needs at least one field", i)
			}
			if c.Regexp {
				for _, pattern := range []string{c.From, c.To, c.Subject, c.Body} {
					if pattern == "" {
						continue
					}
					if _, err := regexp.Compile(pattern); err != nil {
						return fmt.Errorf("condition %d: invalid regexp %q: %w", i, pattern, err)
					}
				}
			}
		case ConditionCategory:
			if len(c.Categories) == 0 {
				return fmt.Errorf("condition %d: category condition needs at least one category", i)
			}
		case ConditionAI:
			if strings.TrimSpace(c.Instruction) == "" {
				return fmt.Errorf("condition %d: ai condition needs an instruction", i)
			}
		default:
			return fmt.Errorf("condition %d: unknown type %q", i, c.Type)
		}
	}

	for i, a := range r.Actions {
		switch a.Type {
		case ActionArchive, ActionMarkRead, ActionMarkSpam:
		case ActionLabel:
			if a.Label == "" {
				return fmt.Errorf("action %d: label action needs a label", i)
			}
		case ActionReply, ActionDraft:
			if a.Content == "" {
				return fmt.Errorf("action %d: %s action needs content", i, a.Type)
			}
		case ActionForward:
			if len(a.To) == 0 {
				return fmt.Errorf("action %d: forward action needs recipients", i)
			}
		case ActionSendEmail:
			if len(a.To) == 0 || a.Subject == "" || a.Content == "" {
				return fmt.Errorf("action %d: send_email action needs to, subject and content", i)
			}
		case ActionCallWebhook:
			if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
				return fmt.Errorf("action %d: call_webhook action needs an http(s) url", i)
			}
		default:
			return fmt.Errorf("action %d: unknown type %q", i, a.Type)
		}
	}

	return nil
}

// AIInstruction joins the instructions of all AI conditions; empty when
// the rule has none.
func (r *Rule) AIInstruction() string {
	var parts []string
	for _, c := range r.Conditions {
		if c.Type == ConditionAI {
			parts = append(parts, c.Instruction)
		}
	}
	return strings.Join(parts, "; ")
}
