package gmail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStubClient(t *testing.T, rt http.RoundTripper) *Client {
	t.Helper()
	c, err := New(context.Background(), &http.Client{Transport: rt}, "jane@example.com")
	require.NoError(t, err)
	return c
}

func TestRemoveLabelUnknownLabelIsNoOp(t *testing.T) {
	var calls []string
	client := newStubClient(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/labels") {
			return jsonResponse(http.StatusOK, `{"labels":[{"id":"Label_1","name":"Receipts"}]}`), nil
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	}))

	err := client.RemoveLabel(context.Background(), "t1", "To Reply")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /gmail/v1/users/me/labels"}, calls)
}

func TestRemoveLabelExistingLabel(t *testing.T) {
	var modified *gmailapi.ModifyThreadRequest
	client := newStubClient(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/labels"):
			return jsonResponse(http.StatusOK, `{"labels":[{"id":"Label_2","name":"To Reply"}]}`), nil
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/threads/t1/modify"):
			modified = &gmailapi.ModifyThreadRequest{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(modified))
			return jsonResponse(http.StatusOK, `{"id":"t1"}`), nil
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			return jsonResponse(http.StatusInternalServerError, `{}`), nil
		}
	}))

	err := client.RemoveLabel(context.Background(), "t1", "to reply")
	require.NoError(t, err)
	require.NotNil(t, modified)
	assert.Equal(t, []string{"Label_2"}, modified.RemoveLabelIds)
}

func TestEnsureLabelCreatesMissingLabel(t *testing.T) {
	created := 0
	client := newStubClient(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/labels"):
			return jsonResponse(http.StatusOK, `{"labels":[]}`), nil
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/labels"):
			created++
			return jsonResponse(http.StatusOK, `{"id":"Label_9","name":"Newsletters"}`), nil
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			return jsonResponse(http.StatusInternalServerError, `{}`), nil
		}
	}))

	id, err := client.EnsureLabel(context.Background(), "Newsletters")
	require.NoError(t, err)
	assert.Equal(t, "Label_9", id)
	assert.Equal(t, 1, created)

	// Cached after creation, no further API calls.
	id, err = client.EnsureLabel(context.Background(), "newsletters")
	require.NoError(t, err)
	assert.Equal(t, "Label_9", id)
	assert.Equal(t, 1, created)
}
