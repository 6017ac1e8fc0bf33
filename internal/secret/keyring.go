package secret

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring stores secrets in the OS keychain (macOS Keychain, Secret Service, Windows Credential Manager).
// Each key becomes one keychain item under the configured service name.
type Keyring struct {
	service string
}

var _ Store = (*Keyring)(nil)

// NewKeyring creates a Keyring store under service.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = "deviceauth"
	}
	return &Keyring{service: service}
}

func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from keychain: %w", key, err)
	}
	return v, nil
}

func (k *Keyring) Store(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("writing %s to keychain: %w", key, err)
	}
	return nil
}

func (k *Keyring) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting %s from keychain: %w", key, err)
	}
	return nil
}
