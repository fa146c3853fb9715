package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/inboxzero/inboxzero/internal/instrumentation"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
	"github.com/inboxzero/inboxzero/internal/watch"
)

// Handler serves the JSON API over the store and the pipeline's
// services.
type Handler struct {
	store     *store.Store
	pipeline  *watch.Pipeline
	clients   watch.Clients
	assistant watch.Assistant
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
}

// New creates the API handler. A nil metrics value disables metric
// recording.
func New(s *store.Store, pipeline *watch.Pipeline, clients watch.Clients, assistant watch.Assistant, metrics *instrumentation.Metrics, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Handler{
		store:     s,
		pipeline:  pipeline,
		clients:   clients,
		assistant: assistant,
		metrics:   metrics,
		logger:    logger,
	}
}

// Routes returns the API's HTTP handler with auth and request
// instrumentation applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/rules", h.listRules)
	mux.HandleFunc("POST /api/rules", h.createRule)
	mux.HandleFunc("GET /api/rules/{id}", h.getRule)
	mux.HandleFunc("PUT /api/rules/{id}", h.updateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", h.deleteRule)
	mux.HandleFunc("POST /api/rules/test", h.testRule)

	mux.HandleFunc("GET /api/cold-emails", h.listColdEmails)
	mux.HandleFunc("POST /api/cold-emails/{sender}/allow", h.allowSender)

	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("POST /api/categories/categorize", h.categorizeInbox)
	mux.HandleFunc("PUT /api/categories/{sender}", h.setCategory)

	mux.HandleFunc("GET /api/reply-tracker", h.listReplyTrackers)
	mux.HandleFunc("POST /api/reply-tracker/{id}/resolve", h.resolveReplyTracker)

	mux.HandleFunc("GET /api/events", h.listEvents)
	mux.HandleFunc("POST /api/events/suggest-times", h.suggestTimes)
	mux.HandleFunc("POST /api/events/{id}/confirm", h.confirmEvent)
	mux.HandleFunc("POST /api/events/{id}/dismiss", h.dismissEvent)

	mux.HandleFunc("GET /api/newsletters", h.listNewsletters)
	mux.HandleFunc("POST /api/newsletters/{sender}/unsubscribe", h.unsubscribeNewsletter)

	return h.authenticate(h.instrument(mux))
}

type contextKey string

const accountKey contextKey = "account"

// accountFrom returns the authenticated account placed in the request
// context by the auth middleware.
func accountFrom(r *http.Request) store.Account {
	account, _ := r.Context().Value(accountKey).(store.Account)
	return account
}

// authenticate resolves the bearer token to an account and rejects
// requests without a valid one.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		account, err := h.store.GetAccountByAPIToken(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if err != nil {
			h.logger.Error("resolve api token", logging.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request metrics and an access log line. It must
// wrap the mux directly: ServeMux sets Pattern on the request it is
// handed, so a middleware that clones the request in between would
// strand the pattern on the copy. The metric path label uses the route
// pattern, not the raw URL, to keep cardinality bounded.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		duration := time.Since(start)
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, duration)
		h.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", duration),
		)
	})
}

// respond writes v as JSON with the given status.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError writes an error body of the form {"error": "..."}.
func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// decode reads the request body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// serveErr maps a service error to an HTTP response: not-found errors
// become 404, everything else is logged and returned as a 500.
func (h *Handler) serveErr(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error(operation, logging.Err(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}
