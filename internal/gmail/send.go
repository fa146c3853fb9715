package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// EmailMessage represents an email to be composed.
type EmailMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	IsHTML  bool

	// Threading headers, set when replying.
	ThreadID   string
	InReplyTo  string
	References string
}

func (m *EmailMessage) validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if m.Body == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// composeMIME renders the message in RFC 5322 format.
func composeMIME(msg *EmailMessage) string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(strings.Join(msg.To, ", "))
	b.WriteString("\r\n")

	if len(msg.Cc) > 0 {
		b.WriteString("Cc: ")
		b.WriteString(strings.Join(msg.Cc, ", "))
		b.WriteString("\r\n")
	}
	if len(msg.Bcc) > 0 {
		b.WriteString("Bcc: ")
		b.WriteString(strings.Join(msg.Bcc, ", "))
		b.WriteString("\r\n")
	}

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.Subject))
	b.WriteString("\r\n")

	if msg.InReplyTo != "" {
		b.WriteString("In-Reply-To: ")
		b.WriteString(msg.InReplyTo)
		b.WriteString("\r\n")
	}
	if msg.References != "" {
		b.WriteString("References: ")
		b.WriteString(msg.References)
		b.WriteString("\r\n")
	}

	if msg.IsHTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return b.String()
}

// encodeRFC2047 encodes a header value when it contains non-ASCII
// characters (umlauts, emoji in subjects).
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// replySubject prefixes "Re: " unless already present.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// forwardSubject prefixes "Fwd: " unless a forward marker is already
// present.
func forwardSubject(subject string) string {
	lower := strings.ToLower(subject)
	if strings.HasPrefix(lower, "fwd:") || strings.HasPrefix(lower, "fw:") {
		return subject
	}
	return "Fwd: " + subject
}

// buildReferences appends the message ID to an existing References
// chain for correct threading.
func buildReferences(existing, messageID string) string {
	if messageID == "" {
		return existing
	}
	if existing == "" {
		return messageID
	}
	return existing + " " + messageID
}

// Signature fetches the account's Gmail signature for the primary
// send-as address, caching it after the first fetch. Missing signatures
// are not an error.
func (c *Client) Signature(ctx context.Context) string {
	c.mu.Lock()
	cached := c.signature
	c.mu.Unlock()
	if cached != "" {
		return cached
	}

	sendAs, err := c.svc.Settings.SendAs.Get("me", "me").Context(ctx).Do()
	if err != nil || sendAs.Signature == "" {
		return ""
	}

	c.mu.Lock()
	c.signature = sendAs.Signature
	c.mu.Unlock()
	return sendAs.Signature
}

func (c *Client) appendSignature(ctx context.Context, body string, isHTML bool) string {
	signature := c.Signature(ctx)
	if signature == "" {
		return body
	}
	if isHTML {
		return body + "<br><br>-- <br>" + signature
	}
	return body + "\n\n-- \n" + signature
}

// SendEmail sends a new email. Returns the sent message ID.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	composed := *msg
	composed.Body = c.appendSignature(ctx, msg.Body, msg.IsHTML)

	start := time.Now()
	sent, err := c.svc.Messages.Send("me", &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(composeMIME(&composed))),
		ThreadId: msg.ThreadID,
	}).Context(ctx).Do()
	c.record(ctx, "send", start, err)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return sent.Id, nil
}

// ReplyToMessage sends a reply to a message, threading it into the
// original conversation.
func (c *Client) ReplyToMessage(ctx context.Context, original *ParsedMessage, body string, isHTML bool) (string, error) {
	if original == nil || original.ID == "" {
		return "", fmt.Errorf("original message is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	to := original.ReplyTo
	if to == "" {
		to = original.From
	}
	if to == "" {
		return "", fmt.Errorf("original message has no sender")
	}

	msg := &EmailMessage{
		To:         []string{to},
		Subject:    replySubject(original.Subject),
		Body:       body,
		IsHTML:     isHTML,
		ThreadID:   original.ThreadID,
		InReplyTo:  original.MessageID,
		References: buildReferences(original.References, original.MessageID),
	}
	return c.SendEmail(ctx, msg)
}

// ForwardMessage forwards a message to new recipients with an optional
// note above the quoted original.
func (c *Client) ForwardMessage(ctx context.Context, original *ParsedMessage, to []string, note string) (string, error) {
	if original == nil || original.ID == "" {
		return "", fmt.Errorf("original message is required")
	}
	if len(to) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	var b strings.Builder
	if note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	b.WriteString("---------- Forwarded message ---------\n")
	fmt.Fprintf(&b, "From: %s\n", original.From)
	if !original.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", original.Date.Format("Mon, 2 Jan 2006 15:04:05 -0700"))
	}
	fmt.Fprintf(&b, "Subject: %s\n", original.Subject)
	fmt.Fprintf(&b, "To: %s\n\n", original.To)
	b.WriteString(original.Body())

	msg := &EmailMessage{
		To:      to,
		Subject: forwardSubject(original.Subject),
		Body:    b.String(),
	}
	return c.SendEmail(ctx, msg)
}

// CreateDraft creates a draft instead of sending. Returns the draft ID.
func (c *Client) CreateDraft(ctx context.Context, msg *EmailMessage) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	composed := *msg
	composed.Body = c.appendSignature(ctx, msg.Body, msg.IsHTML)

	start := time.Now()
	draft, err := c.svc.Drafts.Create("me", &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString([]byte(composeMIME(&composed))),
			ThreadId: msg.ThreadID,
		},
	}).Context(ctx).Do()
	c.record(ctx, "create_draft", start, err)
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	return draft.Id, nil
}

// CreateReplyDraft creates a draft reply threaded into the original
// conversation.
func (c *Client) CreateReplyDraft(ctx context.Context, original *ParsedMessage, body string) (string, error) {
	if original == nil || original.ID == "" {
		return "", fmt.Errorf("original message is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	to := original.ReplyTo
	if to == "" {
		to = original.From
	}

	msg := &EmailMessage{
		To:         []string{to},
		Subject:    replySubject(original.Subject),
		Body:       body,
		ThreadID:   original.ThreadID,
		InReplyTo:  original.MessageID,
		References: buildReferences(original.References, original.MessageID),
	}
	return c.CreateDraft(ctx, msg)
}
