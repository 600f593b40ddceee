package gmail

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	serviceName = "letterbox"
	tokenKey    = "gmail-token"
)

// TokenStore persists the OAuth2 token in the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
type TokenStore struct{}

// NewTokenStore returns a new keyring-backed TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// SaveToken stores the given OAuth2 token in the OS keyring.
func (t *TokenStore) SaveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(serviceName, tokenKey, string(data)); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// LoadToken retrieves the OAuth2 token from the OS keyring.
func (t *TokenStore) LoadToken() (*oauth2.Token, error) {
	data, err := keyring.Get(serviceName, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load token from keyring: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes the OAuth2 token from the OS keyring.
func (t *TokenStore) DeleteToken() error {
	if err := keyring.Delete(serviceName, tokenKey); err != nil {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
