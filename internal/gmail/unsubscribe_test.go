package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListUnsubscribe(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []UnsubscribeMethod
	}{
		{
			name:   "mailto and http",
			header: "<mailto:unsub@example.com>, <https://example.com/unsub>",
			want: []UnsubscribeMethod{
				{Type: "mailto", URL: "mailto:unsub@example.com"},
				{Type: "http", URL: "https://example.com/unsub"},
			},
		},
		{
			name:   "http only",
			header: "<http://example.com/unsub?id=42>",
			want:   []UnsubscribeMethod{{Type: "http", URL: "http://example.com/unsub?id=42"}},
		},
		{
			name:   "mailto with subject parameter",
			header: "<mailto:unsub@example.com?subject=unsubscribe>",
			want:   []UnsubscribeMethod{{Type: "mailto", URL: "mailto:unsub@example.com?subject=unsubscribe"}},
		},
		{
			name:   "unknown scheme ignored",
			header: "<ftp://example.com/unsub>",
			want:   nil,
		},
		{
			name:   "empty header",
			header: "",
			want:   nil,
		},
		{
			name:   "malformed without closing bracket",
			header: "<https://example.com/unsub",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseListUnsubscribe(tt.header))
		})
	}
}

func TestPreferredUnsubscribeLink(t *testing.T) {
	t.Run("prefers http over mailto", func(t *testing.T) {
		link := PreferredUnsubscribeLink("<mailto:unsub@example.com>, <https://example.com/unsub>")
		assert.Equal(t, "https://example.com/unsub", link)
	})

	t.Run("falls back to mailto", func(t *testing.T) {
		link := PreferredUnsubscribeLink("<mailto:unsub@example.com>")
		assert.Equal(t, "mailto:unsub@example.com", link)
	})

	t.Run("empty when nothing usable", func(t *testing.T) {
		assert.Empty(t, PreferredUnsubscribeLink(""))
	})
}

func TestUnsubscribeViaHTTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotUserAgent string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserAgent = r.Header.Get("User-Agent")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := UnsubscribeViaHTTP(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "inboxzero/1.0", gotUserAgent)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := UnsubscribeViaHTTP(context.Background(), srv.URL)
		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("rejects non-http URL", func(t *testing.T) {
		err := UnsubscribeViaHTTP(context.Background(), "mailto:unsub@example.com")
		assert.ErrorContains(t, err, "invalid HTTP URL")
	})
}
