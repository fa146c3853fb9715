package google

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/inboxzero/inboxzero/internal/store"
)

// TokenProvider hands out OAuth tokens for connected accounts.
// The abstraction allows different token sources (database-backed for
// the server, file-based for one-shot CLI runs).
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the account email.
	GetTokenForAccount(ctx context.Context, email string) (*oauth2.Token, error)

	// HasTokenForAccount reports whether a token exists for the account.
	HasTokenForAccount(ctx context.Context, email string) bool
}

// StoreTokenProvider reads encrypted refresh tokens from the accounts
// table. Access tokens are minted on demand by the oauth2 transport.
type StoreTokenProvider struct {
	store  *store.Store
	cipher *TokenCipher
}

// NewStoreTokenProvider creates a database-backed token provider.
func NewStoreTokenProvider(s *store.Store, cipher *TokenCipher) *StoreTokenProvider {
	return &StoreTokenProvider{store: s, cipher: cipher}
}

// GetTokenForAccount loads and decrypts the refresh token for an account.
// The returned token is expired on purpose so the token source refreshes
// it on first use.
func (p *StoreTokenProvider) GetTokenForAccount(ctx context.Context, email string) (*oauth2.Token, error) {
	account, err := p.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", email, err)
	}
	if account.RefreshToken == "" {
		return nil, fmt.Errorf("account %s has no stored refresh token", email)
	}

	refreshToken, err := p.cipher.Decrypt(account.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token for %s: %w", email, err)
	}

	return &oauth2.Token{
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	}, nil
}

// HasTokenForAccount reports whether the account has a stored refresh token.
func (p *StoreTokenProvider) HasTokenForAccount(ctx context.Context, email string) bool {
	account, err := p.store.GetAccountByEmail(ctx, email)
	return err == nil && account.RefreshToken != ""
}

// SaveToken encrypts and stores a refresh token for an account.
func (p *StoreTokenProvider) SaveToken(ctx context.Context, email string, token *oauth2.Token) error {
	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("token with refresh token is required")
	}

	account, err := p.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load account %s: %w", email, err)
	}

	encrypted, err := p.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	return p.store.UpdateRefreshToken(ctx, account.ID, encrypted)
}

// FileTokenProvider reads refresh tokens from per-account files in the
// user cache directory (~/.cache/inboxzero/<account>.token). Used by
// the one-shot process command where no database is involved.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount reads the token file for an account.
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, email string) (*oauth2.Token, error) {
	slurp, err := os.ReadFile(tokenFile(email))
	if err != nil {
		return nil, fmt.Errorf("no stored Google token for account %s: %w", email, err)
	}

	refreshToken := strings.TrimSpace(string(slurp))
	if refreshToken == "" {
		return nil, fmt.Errorf("token file for account %s is empty", email)
	}

	return &oauth2.Token{
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	}, nil
}

// HasTokenForAccount reports whether a token file exists for the account.
func (p *FileTokenProvider) HasTokenForAccount(ctx context.Context, email string) bool {
	_, err := os.Stat(tokenFile(email))
	return err == nil
}

// SaveToken writes the refresh token file for an account.
func (p *FileTokenProvider) SaveToken(ctx context.Context, email string, token *oauth2.Token) error {
	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("token with refresh token is required")
	}

	dir := filepath.Dir(tokenFile(email))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(tokenFile(email), []byte(token.RefreshToken), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func tokenFile(email string) string {
	name := strings.NewReplacer("/", "_", "@", "_at_").Replace(email)
	return filepath.Join(userCacheDir(), "inboxzero", name+".token")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
