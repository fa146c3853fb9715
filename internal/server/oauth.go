package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/oauth2"

	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/google"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/store"
)

// stateTTL bounds how long an authorization flow may take between the
// redirect to Google and the callback.
const stateTTL = 10 * time.Minute

// ConnectHandler implements the Google account connect flow:
// GET /auth/google/login redirects to Google's consent screen and
// GET /auth/google/callback exchanges the code, resolves the account's
// email address, and stores the encrypted refresh token. New accounts
// receive an API bearer token in the callback response.
type ConnectHandler struct {
	conf    *oauth2.Config
	store   *store.Store
	cipher  *google.TokenCipher
	cache   *ServerContext
	logger  *slog.Logger
	lookup  func(ctx context.Context, client *http.Client) (string, error)
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]time.Time // state -> expiry
}

// NewConnectHandler creates the connect flow handler.
func NewConnectHandler(conf *oauth2.Config, s *store.Store, cipher *google.TokenCipher, cache *ServerContext, logger *slog.Logger) *ConnectHandler {
	return &ConnectHandler{
		conf:    conf,
		store:   s,
		cipher:  cipher,
		cache:   cache,
		logger:  logger,
		lookup:  lookupAccountEmail,
		now:     time.Now,
		pending: make(map[string]time.Time),
	}
}

// lookupAccountEmail asks Gmail whose mailbox the token grants access to.
func lookupAccountEmail(ctx context.Context, client *http.Client) (string, error) {
	mailbox, err := gmail.New(ctx, client, "me")
	if err != nil {
		return "", err
	}
	email, _, err := mailbox.Profile(ctx)
	return email, err
}

// Register mounts the connect flow endpoints on the mux.
func (h *ConnectHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/google/login", h.login)
	mux.HandleFunc("GET /auth/google/callback", h.callback)
}

// login issues a fresh state value and redirects to Google. Offline
// access with forced consent guarantees a refresh token in the
// exchange even for repeat authorizations.
func (h *ConnectHandler) login(w http.ResponseWriter, r *http.Request) {
	state := ksuid.New().String()
	h.putState(state)

	url := h.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *ConnectHandler) callback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("authorization denied: %s", errMsg))
		return
	}

	state := r.URL.Query().Get("state")
	if !h.takeState(state) {
		respondError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.conf.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth code exchange", logging.Err(err))
		respondError(w, http.StatusBadGateway, "code exchange failed")
		return
	}
	if token.RefreshToken == "" {
		respondError(w, http.StatusBadGateway, "Google returned no refresh token")
		return
	}

	email, err := h.lookup(r.Context(), google.HTTPClient(r.Context(), h.conf, token))
	if err != nil {
		h.logger.Error("resolve account email", logging.Err(err))
		respondError(w, http.StatusBadGateway, "could not resolve account email")
		return
	}

	account, created, err := h.saveAccount(r.Context(), email, token.RefreshToken)
	if err != nil {
		h.logger.Error("store connected account", logging.UserHash(email), logging.Err(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("account connected",
		logging.UserHash(email),
		slog.Bool("created", created),
	)

	respond(w, http.StatusOK, connectResponse{
		Email:    account.Email,
		APIToken: account.APIToken,
		Created:  created,
	})
}

type connectResponse struct {
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
	Created  bool   `json:"created"`
}

// saveAccount creates the account on first connect or replaces the
// stored refresh token on reconnect. Cached clients for the account
// are dropped so the next use picks up the new token.
func (h *ConnectHandler) saveAccount(ctx context.Context, email, refreshToken string) (store.Account, bool, error) {
	encrypted, err := h.cipher.Encrypt(refreshToken)
	if err != nil {
		return store.Account{}, false, fmt.Errorf("encrypt refresh token: %w", err)
	}

	account, err := h.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		account, err = h.store.CreateAccount(ctx, store.Account{
			Email:        email,
			RefreshToken: encrypted,
			APIToken:     ksuid.New().String(),
		})
		if err != nil {
			return store.Account{}, false, err
		}
		return account, true, nil
	}
	if err != nil {
		return store.Account{}, false, err
	}

	if err := h.store.UpdateRefreshToken(ctx, account.ID, encrypted); err != nil {
		return store.Account{}, false, err
	}
	if h.cache != nil {
		h.cache.InvalidateAccount(account.ID)
	}
	return account, false, nil
}

func (h *ConnectHandler) putState(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for s, expiry := range h.pending {
		if now.After(expiry) {
			delete(h.pending, s)
		}
	}
	h.pending[state] = now.Add(stateTTL)
}

// takeState consumes a state value; each one is valid for a single
// callback within its TTL.
func (h *ConnectHandler) takeState(state string) bool {
	if state == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	expiry, ok := h.pending[state]
	if !ok {
		return false
	}
	delete(h.pending, state)
	return h.now().Before(expiry)
}

// respond and respondError mirror the API package's JSON helpers for
// the handful of endpoints this package serves.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
