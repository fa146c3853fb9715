package llm

import (
	"fmt"
	"strings"
	"time"
)

const chooseRuleSystem = `You are an email assistant that routes incoming emails to the user's automation rules.
You are given an email and a numbered list of rules, each with an instruction describing which emails it should handle.
Pick the single rule whose instruction best matches the email, or report no match when none applies.
Match conservatively: when in doubt, report no match instead of guessing.`

const coldEmailSystem = `You are an email assistant that detects cold emails.
A cold email is an unsolicited message from a stranger pitching a product, service, partnership, recruiting offer, or link exchange.
Emails from known correspondents, transactional emails, personal messages, and newsletters the user subscribed to are NOT cold emails.`

const categorizeSystem = `You are an email assistant that categorizes email senders.
You are given a list of senders with sample subject lines and a fixed set of categories.
Assign exactly one category to each sender. Use "other" only when no other category plausibly fits.`

const extractEventSystem = `You are an email assistant that extracts calendar event proposals from emails.
Report an event only when the email proposes or confirms a meeting, call, appointment, or gathering at a concrete time.
Resolve relative dates ("next Tuesday", "tomorrow at 3pm") against the current date provided.
Return the start time as RFC 3339 with the user's timezone offset. When no end time or duration is stated, estimate a sensible duration in minutes.`

func chooseRulePrompt(email EmailSummary, rules []RuleOption) string {
	var b strings.Builder
	b.WriteString("Rules:\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.Name, r.Instruction)
	}
	b.WriteString("\nEmail:\n")
	b.WriteString(email.render())
	return b.String()
}

func coldEmailPrompt(email EmailSummary, senderContext string) string {
	var b strings.Builder
	if senderContext != "" {
		b.WriteString("Sender context: ")
		b.WriteString(senderContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Email:\n")
	b.WriteString(email.render())
	return b.String()
}

func categorizePrompt(senders []SenderSample, categories []string) string {
	var b strings.Builder
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString("\n\nSenders:\n")
	for _, s := range senders {
		fmt.Fprintf(&b, "- %s", s.Address)
		if len(s.Subjects) > 0 {
			fmt.Fprintf(&b, " (recent subjects: %s)", strings.Join(s.Subjects, "; "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func extractEventPrompt(email EmailSummary, now time.Time, timezone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date: %s\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "User timezone: %s\n\n", timezone)
	b.WriteString("Email:\n")
	b.WriteString(email.render())
	return b.String()
}
