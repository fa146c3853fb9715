package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// categorizeMaxMessages bounds how many recent inbox messages a bulk
// categorization samples senders from.
const categorizeMaxMessages = 50

type coldEmailResponse struct {
	Sender    string    `json:"sender"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) listColdEmails(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	list, err := h.store.ListColdEmails(r.Context(), account.ID, r.URL.Query().Get("status"))
	if err != nil {
		h.serveErr(w, "list cold emails", err)
		return
	}

	out := make([]coldEmailResponse, 0, len(list))
	for _, c := range list {
		out = append(out, coldEmailResponse{
			Sender:    c.Sender,
			Status:    c.Status,
			Reason:    c.Reason,
			MessageID: c.MessageID,
			UpdatedAt: c.UpdatedAt,
		})
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) allowSender(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	sender := r.PathValue("sender")
	if err := h.pipeline.Blocker().Allow(r.Context(), account.ID, sender); err != nil {
		h.serveErr(w, "allow sender", err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"sender": sender, "status": "allowed"})
}

type categoryResponse struct {
	Sender    string    `json:"sender"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	list, err := h.store.ListSenderCategories(r.Context(), account.ID)
	if err != nil {
		h.serveErr(w, "list categories", err)
		return
	}

	out := make([]categoryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, categoryResponse{
			Sender:    c.Sender,
			Category:  c.Category,
			Source:    c.Source,
			UpdatedAt: c.UpdatedAt,
		})
	}
	respond(w, http.StatusOK, out)
}

// categorizeInbox samples recent inbox messages and runs any senders
// without a stored category through the model.
func (h *Handler) categorizeInbox(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	mailbox, err := h.clients.Mailbox(r.Context(), account)
	if err != nil {
		h.serveErr(w, "build mailbox", err)
		return
	}

	listed, err := mailbox.ListMessages(r.Context(), "in:inbox", categorizeMaxMessages)
	if err != nil {
		h.serveErr(w, "list messages", err)
		return
	}

	msgs := make([]*gmail.ParsedMessage, 0, len(listed))
	for _, m := range listed {
		msg, err := mailbox.GetParsedMessage(r.Context(), m.Id)
		if err != nil {
			h.logger.Error("fetch message", logging.Message(m.Id), logging.Err(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	categorizer := h.pipeline.Categorizer()
	samples, err := categorizer.Collect(r.Context(), account.ID, msgs)
	if err != nil {
		h.serveErr(w, "collect senders", err)
		return
	}

	categorized := 0
	if len(samples) > 0 {
		categorized, err = categorizer.Categorize(r.Context(), account.ID, samples)
		if err != nil {
			h.serveErr(w, "categorize senders", err)
			return
		}
	}
	respond(w, http.StatusOK, map[string]int{"categorized": categorized})
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

func (h *Handler) setCategory(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var req setCategoryRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	sender := r.PathValue("sender")
	if err := h.pipeline.Categorizer().SetManual(r.Context(), account.ID, sender, req.Category); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"sender": sender, "category": req.Category})
}

type newsletterResponse struct {
	Sender          string    `json:"sender"`
	Status          string    `json:"status"`
	UnsubscribeLink string    `json:"unsubscribe_link,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (h *Handler) listNewsletters(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	list, err := h.pipeline.Newsletters().List(r.Context(), account.ID)
	if err != nil {
		h.serveErr(w, "list newsletters", err)
		return
	}

	out := make([]newsletterResponse, 0, len(list))
	for _, n := range list {
		out = append(out, newsletterResponse{
			Sender:          n.Sender,
			Status:          n.Status,
			UnsubscribeLink: n.UnsubscribeLink,
			UpdatedAt:       n.UpdatedAt,
		})
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) unsubscribeNewsletter(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	sender := r.PathValue("sender")
	if err := h.pipeline.Newsletters().Unsubscribe(r.Context(), account.ID, sender); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"sender": sender, "status": "unsubscribed"})
}
