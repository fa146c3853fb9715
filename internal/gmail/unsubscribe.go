package gmail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UnsubscribeMethod represents a single way to unsubscribe from a
// sender, extracted from the List-Unsubscribe header (RFC 2369).
type UnsubscribeMethod struct {
	Type string // "mailto" or "http"
	URL  string
}

// ParseListUnsubscribe parses a List-Unsubscribe header value. The
// header contains one or more angle-bracketed URIs:
//
//	<mailto:unsub@example.com>, <https://example.com/unsub?id=42>
func ParseListUnsubscribe(header string) []UnsubscribeMethod {
	var methods []UnsubscribeMethod

	for _, part := range strings.Split(header, "<") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		end := strings.Index(part, ">")
		if end == -1 {
			continue
		}
		uri := strings.TrimSpace(part[:end])

		switch {
		case strings.HasPrefix(uri, "mailto:"):
			methods = append(methods, UnsubscribeMethod{Type: "mailto", URL: uri})
		case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
			methods = append(methods, UnsubscribeMethod{Type: "http", URL: uri})
		}
	}

	return methods
}

// PreferredUnsubscribeLink returns the best unsubscribe URI from a
// List-Unsubscribe header: HTTP links win over mailto since they can be
// actioned without composing mail. Empty when the header has no usable
// method.
func PreferredUnsubscribeLink(header string) string {
	methods := ParseListUnsubscribe(header)
	for _, m := range methods {
		if m.Type == "http" {
			return m.URL
		}
	}
	if len(methods) > 0 {
		return methods[0].URL
	}
	return ""
}

var unsubscribeHTTPClient = &http.Client{Timeout: 30 * time.Second}

// UnsubscribeViaHTTP performs an HTTP GET against an unsubscribe URL,
// following RFC 2369.
func UnsubscribeViaHTTP(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid HTTP URL: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	// Some unsubscribe endpoints reject requests without a user agent.
	req.Header.Set("User-Agent", "inboxzero/1.0")

	resp, err := unsubscribeHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send unsubscribe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("unsubscribe request failed with status %d", resp.StatusCode)
	}
	return nil
}
