package gmail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleEmail = "From: Jane Doe <Jane@Example.com>\r\n" +
	"To: you@example.com\r\n" +
	"Subject: Quick question\r\n" +
	"Date: Tue, 10 Mar 2026 09:30:00 +0100\r\n" +
	"Message-ID: <abc123@mail.example.com>\r\n" +
	"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
	"\r\n" +
	"Do you have time this week?\r\n"

func TestParseRawSimple(t *testing.T) {
	m, err := ParseRaw([]byte(simpleEmail))
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", m.FromName)
	assert.Equal(t, "jane@example.com", m.FromEmail)
	assert.Equal(t, "you@example.com", m.To)
	assert.Equal(t, "Quick question", m.Subject)
	assert.Equal(t, "<abc123@mail.example.com>", m.MessageID)
	assert.Contains(t, m.TextBody, "Do you have time this week?")
	assert.Empty(t, m.HTMLBody)
	assert.Equal(t, 2026, m.Date.Year())
	assert.Equal(t, "example.com", m.SenderDomain())
}

func TestParseRawMultipart(t *testing.T) {
	raw := "From: newsletter@shop.example\r\n" +
		"To: you@example.com\r\n" +
		"Subject: Weekly deals\r\n" +
		"List-Unsubscribe: <mailto:unsub@shop.example>, <https://shop.example/unsub?u=1>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		"Deals inside.\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		"<p>Deals <b>inside</b>.</p>\r\n" +
		"--BOUNDARY--\r\n"

	m, err := ParseRaw([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "newsletter@shop.example", m.FromEmail)
	assert.Contains(t, m.TextBody, "Deals inside.")
	assert.Contains(t, m.HTMLBody, "<b>inside</b>")
	assert.NotEmpty(t, m.ListUnsubscribe)

	link := PreferredUnsubscribeLink(m.ListUnsubscribe)
	assert.Equal(t, "https://shop.example/unsub?u=1", link)
}

func TestParseRawEncodedSubject(t *testing.T) {
	raw := strings.Replace(simpleEmail,
		"Subject: Quick question",
		"Subject: =?UTF-8?B?R3LDvMOfZSBhdXMgTcO8bmNoZW4=?=", 1)

	m, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Grüße aus München", m.Subject)
}

func TestParseRawMalformedFrom(t *testing.T) {
	raw := strings.Replace(simpleEmail,
		"From: Jane Doe <Jane@Example.com>",
		"From: not-a-valid-address", 1)

	m, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	// Falls back to the raw header value, lowercased.
	assert.Equal(t, "not-a-valid-address", m.FromEmail)
}

func TestParsedMessageBody(t *testing.T) {
	m := &ParsedMessage{TextBody: "plain", HTMLBody: "<p>html</p>"}
	assert.Equal(t, "plain", m.Body())

	m.TextBody = ""
	assert.Equal(t, "<p>html</p>", m.Body())
}

func TestParsedMessageLabels(t *testing.T) {
	m := &ParsedMessage{LabelIDs: []string{"INBOX", "UNREAD"}}
	assert.True(t, m.InInbox())
	assert.True(t, m.Unread())
	assert.False(t, m.Sent())

	m.LabelIDs = []string{"SENT"}
	assert.True(t, m.Sent())
	assert.False(t, m.InInbox())
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantName string
		wantAddr string
	}{
		{"name and address", "Jane Doe <JANE@Example.com>", "Jane Doe", "jane@example.com"},
		{"bare address", "jane@example.com", "", "jane@example.com"},
		{"empty", "", "", ""},
		{"quoted name", `"Doe, Jane" <jane@example.com>`, "Doe, Jane", "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, addr := splitAddress(tt.header)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}
