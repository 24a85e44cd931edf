// Package keychain stores the Key Vault application secret in the OS keychain
// (macOS Keychain, Secret Service on Linux, Windows Credential Manager).
package keychain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service is the keychain service name entries are stored under.
const Service = "kvresolve"

// ErrItemNotFound is returned when no secret is stored for an application id.
var ErrItemNotFound = errors.New("keychain item not found")

// Store reads and writes application secrets keyed by application id.
type Store struct {
	service string
}

// New returns a Store using the default service name.
func New() *Store {
	return &Store{service: Service}
}

// NewWithService returns a Store using a custom service name.
func NewWithService(service string) *Store {
	return &Store{service: service}
}

// Get returns the secret stored for appID.
func (s *Store) Get(appID string) (string, error) {
	if err := validateAccount(appID); err != nil {
		return "", err
	}

	secret, err := keyring.Get(s.service, appID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrItemNotFound
		}
		return "", fmt.Errorf("keychain read for %s: %w", appID, err)
	}
	return secret, nil
}

// Set stores secret for appID, replacing any previous value.
func (s *Store) Set(appID, secret string) error {
	if err := validateAccount(appID); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("refusing to store an empty secret")
	}

	if err := keyring.Set(s.service, appID, secret); err != nil {
		return fmt.Errorf("keychain write for %s: %w", appID, err)
	}
	return nil
}

// Delete removes the secret stored for appID. Deleting a missing entry
// returns ErrItemNotFound.
func (s *Store) Delete(appID string) error {
	if err := validateAccount(appID); err != nil {
		return err
	}

	if err := keyring.Delete(s.service, appID); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("keychain delete for %s: %w", appID, err)
	}
	return nil
}

func validateAccount(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return errors.New("application id is required")
	}
	return nil
}
