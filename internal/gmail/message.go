package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	gmail "google.golang.org/api/gmail/v1"
)

// ParsedMessage is a decoded email with the fields the automation
// engine cares about. Bodies are MIME-decoded plain text and HTML.
type ParsedMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	InternalDate time.Time

	From      string // full From header, e.g. `Jane Doe <jane@example.com>`
	FromEmail string // bare address, lowercased
	FromName  string
	To        string
	ReplyTo   string
	Subject   string
	Date      time.Time

	MessageID  string // RFC 5322 Message-ID header
	References string

	Snippet         string
	TextBody        string
	HTMLBody        string
	ListUnsubscribe string
}

// Unread reports whether the message carries the UNREAD label.
func (m *ParsedMessage) Unread() bool {
	for _, l := range m.LabelIDs {
		if l == "UNREAD" {
			return true
		}
	}
	return false
}

// InInbox reports whether the message carries the INBOX label.
func (m *ParsedMessage) InInbox() bool {
	for _, l := range m.LabelIDs {
		if l == "INBOX" {
			return true
		}
	}
	return false
}

// Sent reports whether the message was sent by the account owner.
func (m *ParsedMessage) Sent() bool {
	for _, l := range m.LabelIDs {
		if l == "SENT" {
			return true
		}
	}
	return false
}

// GetParsedMessage fetches a message in raw format and decodes its MIME
// structure.
func (c *Client) GetParsedMessage(ctx context.Context, messageID string) (*ParsedMessage, error) {
	msg, err := c.svc.Messages.Get("me", messageID).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	raw, err := decodeBase64(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}

	parsed, err := ParseRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", messageID, err)
	}

	parsed.ID = msg.Id
	parsed.ThreadID = msg.ThreadId
	parsed.LabelIDs = msg.LabelIds
	parsed.Snippet = msg.Snippet
	if msg.InternalDate > 0 {
		parsed.InternalDate = time.UnixMilli(msg.InternalDate)
	}
	return parsed, nil
}

// ParseRaw decodes an RFC 5322 message into a ParsedMessage. Gmail
// metadata (ID, thread, labels) is left empty; the caller fills it in.
func ParseRaw(raw []byte) (*ParsedMessage, error) {
	env, err := enmime.ReadEnvelope(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("read MIME envelope: %w", err)
	}

	m := &ParsedMessage{
		From:            env.GetHeader("From"),
		To:              env.GetHeader("To"),
		ReplyTo:         env.GetHeader("Reply-To"),
		Subject:         env.GetHeader("Subject"),
		MessageID:       env.GetHeader("Message-ID"),
		References:      env.GetHeader("References"),
		ListUnsubscribe: env.GetHeader("List-Unsubscribe"),
		TextBody:        env.Text,
		HTMLBody:        env.HTML,
	}

	m.FromName, m.FromEmail = splitAddress(m.From)

	if d := env.GetHeader("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			m.Date = t
		}
	}

	return m, nil
}

// Body returns the plain text body, falling back to HTML when no text
// part exists.
func (m *ParsedMessage) Body() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	return m.HTMLBody
}

// SenderDomain returns the domain part of the sender address.
func (m *ParsedMessage) SenderDomain() string {
	if i := strings.LastIndex(m.FromEmail, "@"); i >= 0 {
		return m.FromEmail[i+1:]
	}
	return ""
}

// splitAddress parses an address header into display name and bare
// lowercased address. Malformed headers degrade to the raw value as the
// address.
func splitAddress(header string) (name, address string) {
	if header == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return "", strings.ToLower(strings.TrimSpace(header))
	}
	return addr.Name, strings.ToLower(addr.Address)
}

// HeaderValue extracts a header value from a Gmail message fetched in
// full or metadata format.
func HeaderValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// decodeBase64 decodes Gmail's base64url payloads, tolerating standard
// base64 as a fallback.
func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.RawURLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(data)
}
