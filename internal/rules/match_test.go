package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inboxzero/inboxzero/internal/gmail"
)

func sampleMessage() *gmail.ParsedMessage {
	return &gmail.ParsedMessage{
		ID:        "m1",
		ThreadID:  "t1",
		From:      "Daily News <news@daily.example>",
		FromEmail: "news@daily.example",
		To:        "jane@example.com",
		Subject:   "Your morning digest",
		TextBody:  "Top stories today. Unsubscribe anytime.",
	}
}

func TestEvaluateLocal(t *testing.T) {
	categoryOf := func(sender string) string {
		if sender == "news@daily.example" {
			return "newsletter"
		}
		return ""
	}

	tests := []struct {
		name string
		rule Rule
		want LocalMatch
	}{
		{
			name: "static from match",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}}},
			want: MatchConfirmed,
		},
		{
			name: "static subject mismatch",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: "invoice"}}},
			want: MatchExcluded,
		},
		{
			name: "static case insensitive",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: "MORNING DIGEST"}}},
			want: MatchConfirmed,
		},
		{
			name: "multiple fields in one condition are ANDed",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, From: "daily.example", Subject: "invoice"}}},
			want: MatchExcluded,
		},
		{
			name: "body match",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Body: "unsubscribe"}}},
			want: MatchConfirmed,
		},
		{
			name: "regexp from match",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, From: `news@daily\.(example|test)`, Regexp: true}}},
			want: MatchConfirmed,
		},
		{
			name: "regexp subject mismatch",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: `^invoice #\d+`, Regexp: true}}},
			want: MatchExcluded,
		},
		{
			name: "regexp is case sensitive unless flagged",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: "MORNING", Regexp: true}}},
			want: MatchExcluded,
		},
		{
			name: "regexp with inline case flag",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: "(?i)morning digest$", Regexp: true}}},
			want: MatchConfirmed,
		},
		{
			name: "regexp body match",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Body: `(?i)unsubscribe\s+anytime`, Regexp: true}}},
			want: MatchConfirmed,
		},
		{
			name: "uncompilable regexp matches nothing",
			rule: Rule{Conditions: []Condition{{Type: ConditionStatic, Subject: "digest[", Regexp: true}}},
			want: MatchExcluded,
		},
		{
			name: "category match",
			rule: Rule{Conditions: []Condition{{Type: ConditionCategory, Categories: []string{"newsletter", "marketing"}}}},
			want: MatchConfirmed,
		},
		{
			name: "category mismatch",
			rule: Rule{Conditions: []Condition{{Type: ConditionCategory, Categories: []string{"receipt"}}}},
			want: MatchExcluded,
		},
		{
			name: "AND with failing static short-circuits AI",
			rule: Rule{
				Conjunction: ConjunctionAnd,
				Conditions: []Condition{
					{Type: ConditionStatic, Subject: "invoice"},
					{Type: ConditionAI, Instruction: "emails about billing"},
				},
			},
			want: MatchExcluded,
		},
		{
			name: "AND with passing static still needs AI",
			rule: Rule{
				Conjunction: ConjunctionAnd,
				Conditions: []Condition{
					{Type: ConditionStatic, From: "daily.example"},
					{Type: ConditionAI, Instruction: "newsletters"},
				},
			},
			want: MatchNeedsAI,
		},
		{
			name: "OR with passing static confirms without AI",
			rule: Rule{
				Conjunction: ConjunctionOr,
				Conditions: []Condition{
					{Type: ConditionStatic, From: "daily.example"},
					{Type: ConditionAI, Instruction: "newsletters"},
				},
			},
			want: MatchConfirmed,
		},
		{
			name: "OR with failing static falls back to AI",
			rule: Rule{
				Conjunction: ConjunctionOr,
				Conditions: []Condition{
					{Type: ConditionStatic, Subject: "invoice"},
					{Type: ConditionAI, Instruction: "newsletters"},
				},
			},
			want: MatchNeedsAI,
		},
		{
			name: "pure AI rule needs AI",
			rule: Rule{Conditions: []Condition{{Type: ConditionAI, Instruction: "newsletters"}}},
			want: MatchNeedsAI,
		},
		{
			name: "no conditions excluded",
			rule: Rule{},
			want: MatchExcluded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateLocal(&tt.rule, sampleMessage(), categoryOf)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateLocalNilCategoryLookup(t *testing.T) {
	rule := Rule{Conditions: []Condition{{Type: ConditionCategory, Categories: []string{"newsletter"}}}}
	got := EvaluateLocal(&rule, sampleMessage(), nil)
	assert.Equal(t, MatchExcluded, got)
}
