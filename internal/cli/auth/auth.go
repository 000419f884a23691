package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "retinoscan-cli"
)

// Keyring is the durable token store backed by the OS keychain/credential
// manager. It implements session.TokenStore: keys ("access", "refresh") are
// scoped per server so the CLI can hold sessions against several deployments.
type Keyring struct {
	server string
}

// NewKeyring returns a token store scoped to one server host
func NewKeyring(server string) *Keyring {
	return &Keyring{server: server}
}

// keyFor returns a unique keychain entry name for a token key on this server
func (k *Keyring) keyFor(key string) string {
	return fmt.Sprintf("%s-%s", key, k.server)
}

// SaveToken persists a token securely in the OS keychain
func (k *Keyring) SaveToken(key, token string) error {
	if err := keyring.Set(service, k.keyFor(key), token); err != nil {
		return fmt.Errorf("failed to save %s token: %w", key, err)
	}
	return nil
}

// LoadToken retrieves a token from the OS keychain
func (k *Keyring) LoadToken(key string) (string, error) {
	token, err := keyring.Get(service, k.keyFor(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("not authenticated. Please run 'retinoscan login' first")
		}
		return "", fmt.Errorf("failed to load %s token: %w", key, err)
	}
	return token, nil
}

// DeleteToken removes a token from the OS keychain
func (k *Keyring) DeleteToken(key string) error {
	if err := keyring.Delete(service, k.keyFor(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s token: %w", key, err)
	}
	return nil
}
