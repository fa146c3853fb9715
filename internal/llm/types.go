package llm

import (
	"fmt"
	"strings"
	"time"
)

// FallbackCategory is assigned when the model returns a category
// outside the allowed set.
const FallbackCategory = "other"

// maxBodyChars caps how much of an email body is sent to the model.
// Long newsletters blow through token limits without adding signal.
const maxBodyChars = 4000

// EmailSummary is the slice of an email handed to the model.
type EmailSummary struct {
	From    string
	To      string
	Subject string
	Body    string
	Date    time.Time
}

// render formats the email for inclusion in a prompt, truncating the
// body.
func (e EmailSummary) render() string {
	body := e.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars] + "\n[truncated]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", e.From)
	if e.To != "" {
		fmt.Fprintf(&b, "To: %s\n", e.To)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", e.Date.Format(time.RFC1123Z))
	}
	fmt.Fprintf(&b, "Subject: %s\n\n%s", e.Subject, body)
	return b.String()
}

// RuleOption is a rule candidate offered to the model.
type RuleOption struct {
	Name        string
	Instruction string
}

// RuleChoice is the model's rule selection. NoMatch is true when none
// of the offered rules applies. Args carries values extracted from the
// email for the chosen rule's template placeholders.
type RuleChoice struct {
	NoMatch  bool   `json:"no_match"`
	RuleName string `json:"rule_name"`
	Reason   string `json:"reason"`
	Args     []Arg  `json:"args"`
}

// Arg is one extracted template argument.
type Arg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ArgsMap converts extracted args to a lookup map.
func (c *RuleChoice) ArgsMap() map[string]string {
	if len(c.Args) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Args))
	for _, a := range c.Args {
		m[a.Name] = a.Value
	}
	return m
}

// ColdEmailVerdict is the model's judgment on whether an email is an
// unsolicited pitch from an unknown sender.
type ColdEmailVerdict struct {
	IsColdEmail bool   `json:"is_cold_email"`
	Reason      string `json:"reason"`
}

// SenderSample is a sender plus a few recent subjects, enough context
// for categorization.
type SenderSample struct {
	Address  string
	Subjects []string
}

// SenderCategory is one categorized sender from a batch call.
type SenderCategory struct {
	Address  string `json:"address"`
	Category string `json:"category"`
}

// EventCandidate is an event proposal extracted from an email.
// Times are RFC 3339 strings as returned by the model; ParseTimes
// converts them.
type EventCandidate struct {
	HasEvent        bool     `json:"has_event"`
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Attendees       []string `json:"attendees"`
}

// ParseTimes converts the candidate's model-provided times into a
// concrete start and end. A missing or unparseable start is an error;
// a missing duration defaults to 30 minutes.
func (c *EventCandidate) ParseTimes() (start, end time.Time, err error) {
	if c.StartTime == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("event candidate has no start time")
	}
	start, err = time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start time %q: %w", c.StartTime, err)
	}

	minutes := c.DurationMinutes
	if minutes <= 0 {
		minutes = 30
	}
	end = start.Add(time.Duration(minutes) * time.Minute)
	return start, end, nil
}
