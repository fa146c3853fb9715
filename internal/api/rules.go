package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/rules"
)

// testRuleMaxMessages bounds how many recent inbox messages a dry run
// evaluates.
const testRuleMaxMessages = 10

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	rows, err := h.store.ListRules(r.Context(), account.ID)
	if err != nil {
		h.serveErr(w, "list rules", err)
		return
	}
	list, err := rules.FromRows(rows)
	if err != nil {
		h.serveErr(w, "decode rules", err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var rule rules.Rule
	if err := decode(r, &rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}
	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule.AccountID = account.ID
	row, err := rule.ToRow()
	if err != nil {
		h.serveErr(w, "encode rule", err)
		return
	}
	created, err := h.store.CreateRule(r.Context(), row)
	if err != nil {
		h.serveErr(w, "create rule", err)
		return
	}
	out, err := rules.FromRow(created)
	if err != nil {
		h.serveErr(w, "decode rule", err)
		return
	}
	respond(w, http.StatusCreated, out)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	row, err := h.store.GetRule(r.Context(), account.ID, r.PathValue("id"))
	if err != nil {
		h.serveErr(w, "get rule", err)
		return
	}
	rule, err := rules.FromRow(row)
	if err != nil {
		h.serveErr(w, "decode rule", err)
		return
	}
	respond(w, http.StatusOK, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var rule rules.Rule
	if err := decode(r, &rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}
	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule.ID = r.PathValue("id")
	rule.AccountID = account.ID
	row, err := rule.ToRow()
	if err != nil {
		h.serveErr(w, "encode rule", err)
		return
	}
	if err := h.store.UpdateRule(r.Context(), row); err != nil {
		h.serveErr(w, "update rule", err)
		return
	}
	respond(w, http.StatusOK, &rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	if err := h.store.DeleteRule(r.Context(), account.ID, r.PathValue("id")); err != nil {
		h.serveErr(w, "delete rule", err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type testRuleRequest struct {
	Rule rules.Rule `json:"rule"`
}

type testRuleMatch struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Matched   bool   `json:"matched"`
}

// testRule dry-runs a rule against the account's recent inbox
// messages. Nothing is executed or persisted; the response reports
// which messages the rule would have matched.
func (h *Handler) testRule(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var req testRuleRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := req.Rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	mailbox, err := h.clients.Mailbox(r.Context(), account)
	if err != nil {
		h.serveErr(w, "build mailbox", err)
		return
	}

	msgs, err := mailbox.ListMessages(r.Context(), "in:inbox", testRuleMaxMessages)
	if err != nil {
		h.serveErr(w, "list messages", err)
		return
	}

	engine := rules.NewEngine(h.store, h.assistant, rules.NewExecutor(mailbox, h.logger), h.logger)
	categoryOf := h.pipeline.Categorizer().CategoryOf(r.Context(), account.ID)

	results := make([]testRuleMatch, 0, len(msgs))
	for _, m := range msgs {
		msg, err := mailbox.GetParsedMessage(r.Context(), m.Id)
		if err != nil {
			h.logger.Error("fetch message", logging.Message(m.Id), logging.Err(err))
			continue
		}
		matched, err := engine.Test(r.Context(), &req.Rule, msg, categoryOf)
		if err != nil {
			h.serveErr(w, "test rule", err)
			return
		}
		results = append(results, testRuleMatch{
			MessageID: msg.ID,
			From:      msg.From,
			Subject:   msg.Subject,
			Matched:   matched,
		})
	}
	respond(w, http.StatusOK, map[string]any{"results": results})
}
