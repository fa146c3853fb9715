// Package google provides shared OAuth2 plumbing for the Gmail and
// Calendar clients: the OAuth configuration with the scopes the service
// needs, token providers that hand out per-account tokens, and an
// AES-256-GCM cipher for refresh tokens at rest.
//
// Two token providers exist: StoreTokenProvider reads encrypted refresh
// tokens from the accounts table (the serve/watch path), and
// FileTokenProvider reads a token file from the user cache directory
// (the one-shot CLI path).
package google
