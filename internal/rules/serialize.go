package rules

import (
	"encoding/json"
	"fmt"

	"github.com/inboxzero/inboxzero/internal/store"
)

// ToRow converts a domain rule into its persisted form.
func (r *Rule) ToRow() (store.Rule, error) {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return store.Rule{}, fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return store.Rule{}, fmt.Errorf("marshal actions: %w", err)
	}

	conjunction := r.Conjunction
	if conjunction == "" {
		conjunction = ConjunctionAnd
	}

	return store.Rule{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Name:        r.Name,
		Conditions:  string(conditions),
		Conjunction: conjunction,
		Actions:     string(actions),
		Enabled:     r.Enabled,
		Automate:    r.Automate,
	}, nil
}

// FromRow converts a persisted rule back into its domain form.
func FromRow(row store.Rule) (*Rule, error) {
	r := &Rule{
		ID:          row.ID,
		AccountID:   row.AccountID,
		Name:        row.Name,
		Conjunction: row.Conjunction,
		Enabled:     row.Enabled,
		Automate:    row.Automate,
	}

	if err := json.Unmarshal([]byte(row.Conditions), &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions of rule %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Actions), &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions of rule %s: %w", row.ID, err)
	}

	return r, nil
}

// FromRows converts a batch, skipping nothing: one corrupt row fails
// the batch since it indicates a bug, not bad user input.
func FromRows(rows []store.Rule) ([]*Rule, error) {
	out := make([]*Rule, 0, len(rows))
	for _, row := range rows {
		r, err := FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
