package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Account is a connected Google account.
type Account struct {
	ID           string
	Email        string
	RefreshToken string // encrypted at rest when a token cipher is configured
	APIToken     string
	HistoryID    uint64
	Timezone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateAccount inserts a new account and returns it with its generated ID.
func (s *Store) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if a.Email == "" {
		return Account{}, fmt.Errorf("account email is required")
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	a.ID = ksuid.New().String()
	now := nowMilli()
	a.CreatedAt = fromMilli(now)
	a.UpdatedAt = fromMilli(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, refresh_token, api_token, history_id, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.RefreshToken, a.APIToken, a.HistoryID, a.Timezone, now, now)
	if err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, refresh_token, api_token, history_id, timezone, created_at, updated_at
		 FROM accounts WHERE id = ?`, id))
}

// GetAccountByEmail retrieves an account by its email address.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, refresh_token, api_token, history_id, timezone, created_at, updated_at
		 FROM accounts WHERE email = ?`, email))
}

// GetAccountByAPIToken retrieves the account owning an API bearer token.
func (s *Store) GetAccountByAPIToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, refresh_token, api_token, history_id, timezone, created_at, updated_at
		 FROM accounts WHERE api_token = ?`, token))
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, refresh_token, api_token, history_id, timezone, created_at, updated_at
		 FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := s.scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateHistoryID persists the last processed Gmail history ID for an account.
func (s *Store) UpdateHistoryID(ctx context.Context, accountID string, historyID uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET history_id = ?, updated_at = ? WHERE id = ?`,
		historyID, nowMilli(), accountID)
	if err != nil {
		return fmt.Errorf("update history id: %w", err)
	}
	return requireAffected(res)
}

// UpdateRefreshToken replaces the stored (encrypted) refresh token.
func (s *Store) UpdateRefreshToken(ctx context.Context, accountID, refreshToken string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		refreshToken, nowMilli(), accountID)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAccount(row *sql.Row) (Account, error) {
	return s.scanAccountRow(row)
}

func (s *Store) scanAccountRow(row rowScanner) (Account, error) {
	var a Account
	var created, updated int64
	err := row.Scan(&a.ID, &a.Email, &a.RefreshToken, &a.APIToken, &a.HistoryID, &a.Timezone, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.CreatedAt = fromMilli(created)
	a.UpdatedAt = fromMilli(updated)
	return a, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
