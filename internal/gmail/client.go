package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/inboxzero/inboxzero/internal/instrumentation"
)

// Client wraps the Gmail Users service and People service for a single
// account.
type Client struct {
	svc       *gmail.UsersService
	peopleSvc *people.Service
	account   string
	metrics   *instrumentation.Metrics

	mu        sync.Mutex
	labels    map[string]string // label name (lowercased) -> label ID
	signature string
}

// New creates a Gmail client for an account. The HTTP client must carry
// OAuth2 credentials for that account.
func New(ctx context.Context, httpClient *http.Client, account string) (*Client, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create Gmail service: %w", err)
	}

	peopleSvc, err := people.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create People service: %w", err)
	}

	return &Client{
		svc:       svc.Users,
		peopleSvc: peopleSvc,
		account:   account,
		metrics:   &instrumentation.Metrics{},
	}, nil
}

// WithMetrics sets the recorder for Google API operation metrics.
// Returns the client for chaining at construction.
func (c *Client) WithMetrics(m *instrumentation.Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// record reports one mutating Gmail API call to the metrics recorder.
func (c *Client) record(ctx context.Context, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
}

// Account returns the account email this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// Profile returns the account's email address and current history ID.
func (c *Client) Profile(ctx context.Context) (email string, historyID uint64, err error) {
	profile, err := c.svc.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("get profile: %w", err)
	}
	return profile.EmailAddress, profile.HistoryId, nil
}

// ArchiveThread archives a thread by removing the INBOX label.
func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	start := time.Now()
	_, err := c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	c.record(ctx, "archive_thread", start, err)
	return err
}

// MarkThreadRead removes the UNREAD label from a thread.
func (c *Client) MarkThreadRead(ctx context.Context, threadID string) error {
	start := time.Now()
	_, err := c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	c.record(ctx, "mark_read", start, err)
	return err
}

// MarkThreadAsSpam marks a thread as spam and removes it from the inbox.
func (c *Client) MarkThreadAsSpam(ctx context.Context, threadID string) error {
	start := time.Now()
	_, err := c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds:    []string{"SPAM"},
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	c.record(ctx, "mark_spam", start, err)
	return err
}

// GetThread retrieves a full Gmail thread with all its messages.
func (c *Client) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	thread, err := c.svc.Threads.Get("me", threadID).Format("metadata").
		MetadataHeaders("From", "To", "Subject", "Date").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// ForeachMessage iterates over all messages matching the query. The
// callback receives message stubs (ID and thread ID only); fetch the
// full message with GetParsedMessage when needed.
func (c *Client) ForeachMessage(ctx context.Context, query string, fn func(*gmail.Message) error) error {
	pageToken := ""
	for {
		req := c.svc.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return err
		}
		for _, m := range res.Messages {
			if err := fn(m); err != nil {
				return err
			}
		}
		if res.NextPageToken == "" {
			return nil
		}
		pageToken = res.NextPageToken
	}
}

// ListMessages lists message stubs matching the query, up to maxResults,
// paginating as needed.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64) ([]*gmail.Message, error) {
	var all []*gmail.Message
	pageToken := ""

	for {
		remaining := maxResults - int64(len(all))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Messages.List("me").Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, err
		}

		all = append(all, res.Messages...)
		if res.NextPageToken == "" || int64(len(all)) >= maxResults {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(all)) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

// ListHistorySince returns the IDs of messages added to the mailbox
// after the given history ID, plus the latest history ID to resume from.
// A 404 from the history API means the ID is too old; callers should
// fall back to a full listing in that case.
func (c *Client) ListHistorySince(ctx context.Context, historyID uint64) (added []string, latest uint64, err error) {
	latest = historyID
	seen := make(map[string]bool)
	pageToken := ""

	for {
		req := c.svc.History.List("me").
			StartHistoryId(historyID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, historyID, fmt.Errorf("list history from %d: %w", historyID, err)
		}

		if res.HistoryId > latest {
			latest = res.HistoryId
		}
		for _, h := range res.History {
			for _, ma := range h.MessagesAdded {
				if ma.Message == nil || seen[ma.Message.Id] {
					continue
				}
				seen[ma.Message.Id] = true
				added = append(added, ma.Message.Id)
			}
		}

		if res.NextPageToken == "" {
			return added, latest, nil
		}
		pageToken = res.NextPageToken
	}
}

// HasSentTo reports whether the account has ever sent an email to the
// given address. Used to exempt known correspondents from cold email
// detection.
func (c *Client) HasSentTo(ctx context.Context, address string) (bool, error) {
	res, err := c.svc.Messages.List("me").
		Q(fmt.Sprintf("in:sent to:%s", address)).
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("search sent mail: %w", err)
	}
	return len(res.Messages) > 0, nil
}

// CountMessagesFrom counts messages received from an address, capped at
// limit. Cheap signal for whether a sender is established.
func (c *Client) CountMessagesFrom(ctx context.Context, address string, limit int64) (int, error) {
	msgs, err := c.ListMessages(ctx, fmt.Sprintf("from:%s", address), limit)
	if err != nil {
		return 0, fmt.Errorf("search mail from %s: %w", address, err)
	}
	return len(msgs), nil
}

// IsKnownContact reports whether the address appears in the account's
// contacts (saved or interacted-with). Failures are treated as unknown
// rather than errors; contact lookup is advisory.
func (c *Client) IsKnownContact(ctx context.Context, address string) bool {
	res, err := c.peopleSvc.People.SearchContacts().
		Query(address).
		ReadMask("emailAddresses").
		PageSize(5).
		Context(ctx).Do()
	if err == nil {
		for _, r := range res.Results {
			if personHasEmail(r.Person, address) {
				return true
			}
		}
	}

	otherRes, err := c.peopleSvc.OtherContacts.Search().
		Query(address).
		ReadMask("emailAddresses").
		PageSize(5).
		Context(ctx).Do()
	if err == nil {
		for _, r := range otherRes.Results {
			if personHasEmail(r.Person, address) {
				return true
			}
		}
	}

	return false
}

func personHasEmail(person *people.Person, address string) bool {
	if person == nil {
		return false
	}
	for _, e := range person.EmailAddresses {
		if strings.EqualFold(e.Value, address) {
			return true
		}
	}
	return false
}
