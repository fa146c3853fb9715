package rules

import (
	"regexp"
	"strings"

	"github.com/inboxzero/inboxzero/internal/gmail"
)

// LocalMatch is the outcome of evaluating a rule's non-AI conditions.
type LocalMatch int

const (
	// MatchExcluded means the rule cannot match this message.
	MatchExcluded LocalMatch = iota
	// MatchConfirmed means the rule matches without consulting the model.
	MatchConfirmed
	// MatchNeedsAI means the local conditions hold but AI conditions
	// remain; the rule is a candidate for ChooseRule.
	MatchNeedsAI
)

// EvaluateLocal evaluates the static and category conditions of a rule
// against a message. categoryOf resolves a sender address to its stored
// category ("" when uncategorized).
func EvaluateLocal(r *Rule, msg *gmail.ParsedMessage, categoryOf func(sender string) string) LocalMatch {
	conjunction := r.Conjunction
	if conjunction == "" {
		conjunction = ConjunctionAnd
	}

	hasAI := false
	anyLocalMatch := false
	allLocalMatch := true
	hasLocal := false

	for _, c := range r.Conditions {
		if c.Type == ConditionAI {
			hasAI = true
			continue
		}
		hasLocal = true
		if conditionMatches(c, msg, categoryOf) {
			anyLocalMatch = true
		} else {
			allLocalMatch = false
		}
	}

	switch conjunction {
	case ConjunctionOr:
		if anyLocalMatch {
			return MatchConfirmed
		}
		if hasAI {
			return MatchNeedsAI
		}
		return MatchExcluded
	default: // AND
		if hasLocal && !allLocalMatch {
			return MatchExcluded
		}
		if hasAI {
			return MatchNeedsAI
		}
		if hasLocal {
			return MatchConfirmed
		}
		return MatchExcluded
	}
}

// conditionMatches evaluates a single static or category condition.
// Within a static condition, every non-empty field must match.
func conditionMatches(c Condition, msg *gmail.ParsedMessage, categoryOf func(string) string) bool {
	switch c.Type {
	case ConditionStatic:
		if c.From != "" && !fieldMatches(c, msg.From, c.From) {
			return false
		}
		if c.To != "" && !fieldMatches(c, msg.To, c.To) {
			return false
		}
		if c.Subject != "" && !fieldMatches(c, msg.Subject, c.Subject) {
			return false
		}
		if c.Body != "" && !fieldMatches(c, msg.Body(), c.Body) {
			return false
		}
		return true

	case ConditionCategory:
		category := ""
		if categoryOf != nil {
			category = categoryOf(msg.FromEmail)
		}
		if category == "" {
			return false
		}
		for _, want := range c.Categories {
			if strings.EqualFold(want, category) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// fieldMatches matches one static condition field: a case-insensitive
// substring, or a regular expression when the condition's Regexp flag
// is set. Patterns are validated when the rule is persisted; one that
// still fails to compile matches nothing.
func fieldMatches(c Condition, haystack, pattern string) bool {
	if c.Regexp {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(haystack)
	}
	return containsFold(haystack, pattern)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
