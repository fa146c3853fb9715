package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// lookupLabel resolves a label name to its ID without creating the
// label. Name matching is case-insensitive; results are cached per
// client.
func (c *Client) lookupLabel(ctx context.Context, name string) (string, bool, error) {
	if name == "" {
		return "", false, fmt.Errorf("label name is required")
	}
	key := strings.ToLower(name)

	c.mu.Lock()
	if id, ok := c.labels[key]; ok {
		c.mu.Unlock()
		return id, true, nil
	}
	c.mu.Unlock()

	res, err := c.svc.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("list labels: %w", err)
	}

	c.mu.Lock()
	if c.labels == nil {
		c.labels = make(map[string]string)
	}
	for _, l := range res.Labels {
		c.labels[strings.ToLower(l.Name)] = l.Id
	}
	id, ok := c.labels[key]
	c.mu.Unlock()
	return id, ok, nil
}

// EnsureLabel returns the ID of the user label with the given name,
// creating it if it does not exist.
func (c *Client) EnsureLabel(ctx context.Context, name string) (string, error) {
	id, ok, err := c.lookupLabel(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	key := strings.ToLower(name)
	created, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}

	c.mu.Lock()
	c.labels[key] = created.Id
	c.mu.Unlock()
	return created.Id, nil
}

// ApplyLabel adds a label (by name) to a thread, creating the label if
// needed.
func (c *Client) ApplyLabel(ctx context.Context, threadID, labelName string) error {
	labelID, err := c.EnsureLabel(ctx, labelName)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	c.record(ctx, "apply_label", start, err)
	return err
}

// RemoveLabel removes a label (by name) from a thread. A label that
// does not exist is a no-op, not created.
func (c *Client) RemoveLabel(ctx context.Context, threadID, labelName string) error {
	labelID, ok, err := c.lookupLabel(ctx, labelName)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	start := time.Now()
	_, err = c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		RemoveLabelIds: []string{labelID},
	}).Context(ctx).Do()
	c.record(ctx, "remove_label", start, err)
	return err
}
