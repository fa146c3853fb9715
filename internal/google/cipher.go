package google

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// TokenCipher encrypts OAuth refresh tokens before they are persisted.
// Uses AES-256-GCM for authenticated encryption: a random nonce per
// encryption, with the nonce prepended to the ciphertext and the whole
// value base64-encoded.
//
// If no key is configured the cipher passes values through unchanged,
// which keeps local development simple but must not be used in
// production deployments.
type TokenCipher struct {
	key     []byte
	enabled bool
}

// NewTokenCipher creates a token cipher. A nil or empty key disables
// encryption; otherwise the key must be exactly 32 bytes.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) == 0 {
		return &TokenCipher{enabled: false}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes (256 bits), got %d bytes", len(key))
	}
	return &TokenCipher{key: key, enabled: true}, nil
}

// Enabled reports whether encryption is active.
func (c *TokenCipher) Enabled() bool {
	return c.enabled
}

// Encrypt encrypts a token. Returns base64(nonce || ciphertext || tag),
// or the plaintext unchanged when encryption is disabled.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if !c.enabled || plaintext == "" {
		return plaintext, nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	// Nonce must be unique per encryption with the same key.
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. When encryption is disabled the value is
// returned unchanged.
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	if !c.enabled || encoded == "" {
		return encoded, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plaintext), nil
}
